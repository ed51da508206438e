// Package gitinfo reads commit metadata and per-file diffs from a local repository
// by running the git binary.
package gitinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrGitUnavailable indicates the git binary could not be found.
var ErrGitUnavailable = errors.New("gitinfo: git binary not found")

const logFormat = "--format=%H%n%an%n%ae%n%aI%n%s%n%b"

// Commit is the metadata of one commit plus the files it touched.
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Date        string
	Subject     string
	Body        string
	Files       []FileChange
}

// AuthoredAt parses Date, returning the zero time when it is not strict ISO 8601.
func (c Commit) AuthoredAt() time.Time {
	t, err := time.Parse(time.RFC3339, c.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FileChange is one file of a commit. Added and Deleted are -1 for binary files.
type FileChange struct {
	Path    string
	Added   int
	Deleted int
	Diff    string
}

// Binary reports whether git considered the change binary.
func (f FileChange) Binary() bool {
	return f.Added < 0 || f.Deleted < 0
}

// Reader produces commit information for a repository.
type Reader interface {
	Commit(ctx context.Context, repoPath, commit string) (*Commit, error)
}

// CLIReader implements Reader with the git command line.
type CLIReader struct {
	binary string
}

// Option customises the CLIReader.
type Option func(*CLIReader)

// WithBinary overrides the git executable.
func WithBinary(path string) Option {
	return func(r *CLIReader) {
		if path != "" {
			r.binary = path
		}
	}
}

// NewCLIReader returns a Reader backed by the git binary on PATH.
func NewCLIReader(opts ...Option) *CLIReader {
	reader := &CLIReader{binary: "git"}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Commit returns the metadata, numstat and diff of each file of commit.
func (r *CLIReader) Commit(ctx context.Context, repoPath, commit string) (*Commit, error) {
	out, err := r.run(ctx, repoPath, "log", "-1", logFormat, commit, "--")
	if err != nil {
		return nil, fmt.Errorf("gitinfo: read commit %s: %w", commit, err)
	}
	info := parseLog(out, commit)

	out, err = r.run(ctx, repoPath, "diff-tree", "--no-commit-id", "--root", "-r", "--numstat", commit)
	if err != nil {
		return nil, fmt.Errorf("gitinfo: list files of %s: %w", commit, err)
	}
	info.Files = parseNumstat(out)

	for i := range info.Files {
		info.Files[i].Diff = r.fileDiff(ctx, repoPath, commit, info.Files[i].Path)
	}
	return info, nil
}

// Version reports the git version string, failing with ErrGitUnavailable when the
// binary cannot be found.
func (r *CLIReader) Version(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// fileDiff falls back to git show for root commits, which have no parent to diff against.
func (r *CLIReader) fileDiff(ctx context.Context, repoPath, commit, path string) string {
	if out, err := r.run(ctx, repoPath, "diff", commit+"~1", commit, "--", path); err == nil {
		return out
	}
	if out, err := r.run(ctx, repoPath, "show", commit, "--", path); err == nil {
		return out
	}
	return ""
}

func (r *CLIReader) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrGitUnavailable
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}

func parseLog(out, commit string) *Commit {
	lines := strings.SplitN(strings.TrimSpace(out), "\n", 6)
	field := func(fallback string, idx int) string {
		if idx < len(lines) {
			return lines[idx]
		}
		return fallback
	}

	info := &Commit{
		Hash:        field(commit, 0),
		AuthorName:  field("", 1),
		AuthorEmail: field("", 2),
		Date:        field("", 3),
		Subject:     field("", 4),
		Body:        strings.TrimSpace(field("", 5)),
	}
	if info.Hash == "" {
		info.Hash = commit
	}
	return info
}

func parseNumstat(out string) []FileChange {
	var files []FileChange
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		files = append(files, FileChange{
			Path:    parts[2],
			Added:   parseCount(parts[0]),
			Deleted: parseCount(parts[1]),
		})
	}
	return files
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
