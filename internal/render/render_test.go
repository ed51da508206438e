package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/vibefs/internal/gitinfo"
)

func intPtr(v int) *int { return &v }

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()

	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	}
	registry, err := NewRegistry(opts)
	require.NoError(t, err)
	return registry
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWindowApply(t *testing.T) {
	lines := []string{"1\n", "2\n", "3\n", "4\n"}

	require.Equal(t, lines, Window{}.Apply(lines))
	require.Equal(t, []string{"1\n", "2\n"}, Window{Head: intPtr(2)}.Apply(lines))
	require.Equal(t, []string{"3\n", "4\n"}, Window{Tail: intPtr(2)}.Apply(lines))
	require.Equal(t, []string{"1\n"}, Window{Head: intPtr(1), Tail: intPtr(3)}.Apply(lines), "head wins")
	require.Equal(t, lines, Window{Head: intPtr(10)}.Apply(lines))
	require.Equal(t, lines, Window{Tail: intPtr(10)}.Apply(lines))
	require.Empty(t, Window{Head: intPtr(0)}.Apply(lines))
	require.Empty(t, Window{Tail: intPtr(0)}.Apply(lines))
}

func TestSplitLinesKeepsTerminators(t *testing.T) {
	require.Nil(t, splitLines(""))
	require.Equal(t, []string{"a\n", "b"}, splitLines("a\nb"))
	require.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
}

func TestDisplayPath(t *testing.T) {
	require.Equal(t, "~/src/main.go", displayPath("/home/ada/src/main.go", "/home/ada"))
	require.Equal(t, "~", displayPath("/home/ada", "/home/ada/"))
	require.Equal(t, "/home/adam/x", displayPath("/home/adam/x", "/home/ada"))
	require.Equal(t, "/srv/x", displayPath("/srv/x", ""))
}

func TestRegistrySelectsRenderer(t *testing.T) {
	registry := newTestRegistry(t, Options{})

	_, ok := registry.For("/a/main.go").(*CodeRenderer)
	require.True(t, ok)
	_, ok = registry.For("/a/README.MD").(*CodeRenderer)
	require.True(t, ok, "markdown is highlighted as code unless enabled")
	_, ok = registry.For("/a/Makefile").(*CodeRenderer)
	require.True(t, ok)
	_, ok = registry.For("/a/.gitignore").(*CodeRenderer)
	require.True(t, ok)
	_, ok = registry.For("/a/photo.png").(RawRenderer)
	require.True(t, ok)
	_, ok = registry.For("/a/noext").(RawRenderer)
	require.True(t, ok)

	withMarkdown := newTestRegistry(t, Options{Markdown: true})
	_, ok = withMarkdown.For("/a/README.md").(*MarkdownRenderer)
	require.True(t, ok)
}

func TestRawRenderer(t *testing.T) {
	dir := t.TempDir()
	registry := newTestRegistry(t, Options{})

	png := writeFile(t, dir, "pixel.png", "\x89PNG\r\n\x1a\n")
	page, err := registry.RenderFile(png, Window{})
	require.NoError(t, err)
	require.Equal(t, "image/png", page.ContentType)
	require.Equal(t, "\x89PNG\r\n\x1a\n", string(page.Body))

	blob := writeFile(t, dir, "blob", "%PDF-1.4\n1 0 obj\n")
	page, err = registry.RenderFile(blob, Window{})
	require.NoError(t, err)
	require.Equal(t, "application/pdf", page.ContentType)

	logFile := writeFile(t, dir, "server.log", "one\ntwo\nthree\n")
	page, err = registry.RenderFile(logFile, Window{Tail: intPtr(2)})
	require.NoError(t, err)
	require.Equal(t, "two\nthree\n", string(page.Body))
}

func TestCodeRenderer(t *testing.T) {
	dir := t.TempDir()
	registry := newTestRegistry(t, Options{HomeDir: dir, LineNumbers: true})
	path := writeFile(t, dir, "main.go", "package main\n\nfunc main() {}\n// <script>alert(1)</script>\n")

	page, err := registry.RenderFile(path, Window{})
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", page.ContentType)

	body := string(page.Body)
	require.Contains(t, body, "<title>main.go</title>")
	require.Contains(t, body, "~/main.go")
	require.Contains(t, body, `class="chroma"`)
	require.Contains(t, body, "func")
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.Contains(t, body, "modified")
}

func TestCodeRendererWindow(t *testing.T) {
	dir := t.TempDir()
	registry := newTestRegistry(t, Options{})
	path := writeFile(t, dir, "notes.txt", "alpha\nbravo\ncharlie\n")

	page, err := registry.RenderFile(path, Window{Head: intPtr(1)})
	require.NoError(t, err)
	require.Contains(t, string(page.Body), "alpha")
	require.NotContains(t, string(page.Body), "charlie")
}

func TestMarkdownRendererSanitizes(t *testing.T) {
	dir := t.TempDir()
	registry := newTestRegistry(t, Options{Markdown: true})
	path := writeFile(t, dir, "README.md", "# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>\n")

	page, err := registry.RenderFile(path, Window{})
	require.NoError(t, err)

	body := string(page.Body)
	require.Contains(t, body, "<h1")
	require.Contains(t, body, "<table>")
	require.NotContains(t, body, "<script>alert(1)</script>")
	require.Contains(t, body, `class="content markdown"`)
}

func TestRenderFileMissing(t *testing.T) {
	registry := newTestRegistry(t, Options{})

	_, err := registry.RenderFile(filepath.Join(t.TempDir(), "gone.go"), Window{})
	require.Error(t, err)
}

func TestCommitRenderer(t *testing.T) {
	registry := newTestRegistry(t, Options{HomeDir: "/home/ada"})
	commit := &gitinfo.Commit{
		Hash:        "0123456789abcdef0123456789abcdef01234567",
		AuthorName:  "Ada",
		AuthorEmail: "ada@example.com",
		Date:        "2025-12-31T23:00:00Z",
		Subject:     "Fix <parser>",
		Body:        "Details here",
		Files: []gitinfo.FileChange{
			{Path: "main.go", Added: 1200, Deleted: 0, Diff: "--- a/main.go\n+++ b/main.go\n@@ -1 +1 @@\n-old\n+new\n"},
			{Path: "logo.png", Added: -1, Deleted: -1},
		},
	}

	page, err := registry.RenderCommit("/home/ada/src/app", commit)
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", page.ContentType)

	body := string(page.Body)
	require.Contains(t, body, "0123456789ab Fix &lt;parser&gt;")
	require.Contains(t, body, "~/src/app")
	require.Contains(t, body, "+1,200")
	require.Contains(t, body, "logo.png")
	require.Contains(t, body, "2025-12-31 23:00")
	require.Contains(t, body, "1 hour ago")
	require.Equal(t, 2, strings.Count(body, "<details open>"))
}

func TestExpiredRenderer(t *testing.T) {
	registry := newTestRegistry(t, Options{})

	page, err := registry.RenderExpired("secret<name>.txt")
	require.NoError(t, err)

	body := string(page.Body)
	require.Contains(t, body, "This file is no longer available")
	require.Contains(t, body, "secret&lt;name&gt;.txt")
	require.Contains(t, body, "has expired")
}
