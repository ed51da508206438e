package render

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// highlighter wraps the chroma formatter and style shared by the code and commit pages.
type highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newHighlighter(styleName string, lineNumbers bool) *highlighter {
	return &highlighter{
		style: styles.Get(styleName),
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.WithLineNumbers(lineNumbers),
			chromahtml.TabWidth(4),
		),
	}
}

func (h *highlighter) css() (template.CSS, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return "", fmt.Errorf("render: style css: %w", err)
	}
	return template.CSS(buf.String()), nil
}

func (h *highlighter) highlight(lexer chroma.Lexer, code string) (template.HTML, error) {
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("render: tokenise: %w", err)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return "", fmt.Errorf("render: format: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// lexerFor picks a lexer from the file name, then from the content.
func lexerFor(path, code string) chroma.Lexer {
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return lexer
	}
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer
	}
	return lexers.Fallback
}

type filePage struct {
	Title string
	Meta  fileMeta
	CSS   template.CSS
	Body  template.HTML
	Class string
}

// CodeRenderer renders source files as a syntax-highlighted HTML page.
type CodeRenderer struct {
	tmpl *template.Template
	hl   *highlighter
	home string
	now  func() time.Time
}

func (r *CodeRenderer) Render(path string, w Window) (Page, error) {
	code, err := readWindow(path, w)
	if err != nil {
		return Page{}, err
	}
	meta, err := describeFile(path, r.home, r.now())
	if err != nil {
		return Page{}, err
	}

	highlighted, err := r.hl.highlight(lexerFor(path, code), code)
	if err != nil {
		return Page{}, err
	}
	css, err := r.hl.css()
	if err != nil {
		return Page{}, err
	}

	return executePage(r.tmpl, "file.html", filePage{
		Title: filepath.Base(path),
		Meta:  meta,
		CSS:   css,
		Body:  highlighted,
		Class: "code",
	})
}

func executePage(tmpl *template.Template, name string, data any) (Page, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return Page{}, fmt.Errorf("render: execute %s: %w", name, err)
	}
	return Page{ContentType: htmlContentType, Body: buf.Bytes()}, nil
}
