package render

import "html/template"

// ExpiredRenderer renders the page shown for an expired token. It reveals only the
// resource's display name.
type ExpiredRenderer struct {
	tmpl *template.Template
}

func (r *ExpiredRenderer) Render(name string) (Page, error) {
	return executePage(r.tmpl, "expired.html", struct{ Name string }{Name: name})
}
