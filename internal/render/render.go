// Package render turns authorized resources into HTTP response bodies.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

const htmlContentType = "text/html; charset=utf-8"

// Page is a rendered response body.
type Page struct {
	ContentType string
	Body        []byte
}

// ContentRenderer renders one file.
type ContentRenderer interface {
	Render(path string, w Window) (Page, error)
}

// Window limits a file to its first Head or last Tail lines. Head wins when both are set.
type Window struct {
	Head *int
	Tail *int
}

// Active reports whether the window restricts anything.
func (w Window) Active() bool {
	return w.Head != nil || w.Tail != nil
}

// Apply selects the visible lines.
func (w Window) Apply(lines []string) []string {
	switch {
	case w.Head != nil:
		n := max(*w.Head, 0)
		if n < len(lines) {
			return lines[:n]
		}
		return lines
	case w.Tail != nil:
		n := max(*w.Tail, 0)
		if n < len(lines) {
			return lines[len(lines)-n:]
		}
		return lines
	default:
		return lines
	}
}

// splitLines splits content keeping each line's terminator.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func readWindow(path string, w Window) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !w.Active() {
		return string(data), nil
	}
	return strings.Join(w.Apply(splitLines(string(data))), ""), nil
}

type fileMeta struct {
	DisplayPath string
	Size        string
	Modified    string
	Relative    string
}

func describeFile(path, home string, now time.Time) (fileMeta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileMeta{}, err
	}
	mtime := info.ModTime()
	return fileMeta{
		DisplayPath: displayPath(path, home),
		Size:        humanize.IBytes(uint64(info.Size())),
		Modified:    mtime.Format("2006-01-02 15:04"),
		Relative:    humanize.RelTime(mtime, now, "ago", "from now"),
	}, nil
}

// displayPath abbreviates the home directory to ~.
func displayPath(path, home string) string {
	if home == "" {
		return path
	}
	home = filepath.Clean(home)
	if path == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~/" + filepath.ToSlash(rest)
	}
	return path
}

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("pages").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return tmpl, nil
}
