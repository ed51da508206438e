package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownRenderer renders Markdown documents to sanitized HTML.
type MarkdownRenderer struct {
	tmpl   *template.Template
	md     goldmark.Markdown
	policy *bluemonday.Policy
	home   string
	now    func() time.Time
}

func newMarkdownRenderer(tmpl *template.Template, home string, now func() time.Time) *MarkdownRenderer {
	return &MarkdownRenderer{
		tmpl: tmpl,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		policy: bluemonday.UGCPolicy(),
		home:   home,
		now:    now,
	}
}

func (r *MarkdownRenderer) Render(path string, w Window) (Page, error) {
	source, err := readWindow(path, w)
	if err != nil {
		return Page{}, err
	}
	meta, err := describeFile(path, r.home, r.now())
	if err != nil {
		return Page{}, err
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return Page{}, fmt.Errorf("render: markdown: %w", err)
	}

	return executePage(r.tmpl, "file.html", filePage{
		Title: filepath.Base(path),
		Meta:  meta,
		Body:  template.HTML(r.policy.SanitizeBytes(buf.Bytes())),
		Class: "markdown",
	})
}
