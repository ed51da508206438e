package main

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var fileURLPattern = regexp.MustCompile(`^http://localhost:17173/f/([0-9a-f]{8})/notes\.txt\n$`)

func TestAllowPrintsURLAndStartsDaemon(t *testing.T) {
	home := setupHome(t)
	spawner := newChildSpawner(home)
	path := writeFile(t, "notes.txt", "hello\n")

	res := runCLI(t, spawner, "allow", path)
	require.Equal(t, 0, res.code, res.stderr)
	require.Regexp(t, fileURLPattern, res.stdout)
	require.Contains(t, res.stderr, "Daemon started (pid 4242)")
	require.NotContains(t, res.stderr, "extended")
	require.Equal(t, 1, spawner.spawnCount())
	require.Equal(t, []string{"serve", "--port", "17173", "--host", "0.0.0.0"}, spawner.spawned[0].Args)

	again := runCLI(t, spawner, "allow", path, "--ttl", "7200")
	require.Equal(t, 0, again.code, again.stderr)
	require.Equal(t, res.stdout, again.stdout)
	require.Contains(t, again.stderr, "(existing authorization extended)")
	require.Equal(t, 1, spawner.spawnCount(), "daemon already running")
}

func TestAllowAppendsWindowAndHonoursHost(t *testing.T) {
	home := setupHome(t)
	path := writeFile(t, "notes.txt", "a\nb\n")

	res := runCLI(t, newChildSpawner(home), "allow", path, "--head", "5", "--host", "devbox", "--port", "9000")
	require.Equal(t, 0, res.code, res.stderr)
	require.True(t, strings.HasPrefix(res.stdout, "http://devbox:9000/f/"), res.stdout)
	require.True(t, strings.HasSuffix(res.stdout, "/notes.txt?head=5\n"), res.stdout)
}

func TestAllowUsesBaseURL(t *testing.T) {
	home := setupHome(t)
	t.Setenv("VIBEFS_BASE_URL", "https://share.example.com/")
	path := writeFile(t, "notes.txt", "a\n")

	res := runCLI(t, newChildSpawner(home), "allow", path, "--tail", "3")
	require.Equal(t, 0, res.code, res.stderr)
	require.Regexp(t, `^https://share\.example\.com/f/[0-9a-f]{8}/notes\.txt\?tail=3\n$`, res.stdout)
}

func TestAllowRejectsInvalidInput(t *testing.T) {
	home := setupHome(t)
	spawner := newChildSpawner(home)
	path := writeFile(t, "notes.txt", "a\n")

	res := runCLI(t, spawner, "allow", path, "--ttl", "0")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "--ttl")

	res = runCLI(t, spawner, "allow", path, "--head", "-1")
	require.Equal(t, 1, res.code)

	res = runCLI(t, spawner, "allow", path+".missing")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "file not found")
	require.Empty(t, res.stdout)

	require.Zero(t, spawner.spawnCount())
}

func TestAllowGit(t *testing.T) {
	home := setupHome(t)
	spawner := newChildSpawner(home)
	repo := makeRepo(t)

	res := runCLI(t, spawner, "allow-git", repo, "0123456789abcdef0123")
	require.Equal(t, 0, res.code, res.stderr)
	require.Regexp(t, `^http://localhost:17173/git/[0-9a-f]{8}\n$`, res.stdout)

	again := runCLI(t, spawner, "allow-git", repo, "0123456789abcdef0123")
	require.Equal(t, res.stdout, again.stdout)
	require.Contains(t, again.stderr, "(existing authorization extended)")

	res = runCLI(t, spawner, "allow-git", t.TempDir(), "abc123")
	require.Equal(t, 1, res.code)
	require.Contains(t, res.stderr, "not a git repository")
}
