// Package web renders the server side HTML pages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/jon4hz/wayfare/internal/viewer"
)

//go:embed templates
var templateFS embed.FS

const layoutTemplate = "layout.html"

// Page is the data passed to every page template.
type Page struct {
	Title     string
	Viewer    viewer.Viewer
	CSRFToken string
	Error     string
	Notice    string
	Data      any
}

// Renderer holds one parsed template set per page.
type Renderer struct {
	pages  map[string]*template.Template
	avatar func(email string) string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithAvatars sets the function resolving an email address to a profile picture URL.
func WithAvatars(fn func(email string) string) Option {
	return func(r *Renderer) {
		r.avatar = fn
	}
}

// New parses the embedded templates.
func New(opts ...Option) (*Renderer, error) {
	pages, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, opt := range opts {
		opt(r)
	}

	funcs := Funcs()
	if r.avatar != nil {
		funcs["avatar"] = r.avatar
	}

	for _, page := range pages {
		t, err := template.New(layoutTemplate).
			Funcs(funcs).
			ParseFS(templateFS, "templates/"+layoutTemplate, "templates/partials/*.html", page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		r.pages[strings.TrimSuffix(path.Base(page), ".html")] = t
	}
	return r, nil
}

// Has reports whether a page template exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render executes the named page into w. Nothing is written when execution fails.
func (r *Renderer) Render(w io.Writer, name string, p *Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutTemplate, p); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
