package render

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// RawRenderer serves file bytes as they are, with a content type guessed from the
// extension and then from the content.
type RawRenderer struct{}

func (RawRenderer) Render(path string, w Window) (Page, error) {
	contentType := contentTypeFor(path)

	if w.Active() {
		text, err := readWindow(path, w)
		if err != nil {
			return Page{}, err
		}
		return Page{ContentType: contentType, Body: []byte(text)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Page{}, err
	}
	return Page{ContentType: contentType, Body: data}, nil
}

func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	if detected, err := mimetype.DetectFile(path); err == nil && detected != nil {
		return detected.String()
	}
	return defaultContentType
}
