// Package templates handles HTML fragment rendering for popups and Datastar
// SSE responses.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strconv"
	"sync"
)

//go:embed fragments/*.html
var embedded embed.FS

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// dict creates a map from key-value pairs, useful for passing multiple values to nested templates
	"dict": func(values ...any) map[string]any {
		if len(values)%2 != 0 {
			return nil
		}
		m := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			m[key] = values[i+1]
		}
		return m
	},
	// meters formats an optional elevation the way the popup shows it.
	"meters": func(v *float64) string {
		if v == nil {
			return "---"
		}
		return strconv.FormatFloat(*v, 'f', 1, 64)
	},
	// orDash replaces empty strings with a dash.
	"orDash": func(s string) string {
		if s == "" {
			return "---"
		}
		return s
	},
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the fragments compiled into the binary.
func New() (*Renderer, error) {
	sub, err := fs.Sub(embedded, "fragments")
	if err != nil {
		return nil, err
	}
	return NewFS(sub)
}

// NewFS parses every *.html file at the root of fsys.
func NewFS(fsys fs.FS) (*Renderer, error) {
	tmpl, err := parse(fsys)
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// NewDir parses fragments from a directory on disk, for overriding the
// embedded set without rebuilding.
func NewDir(fragmentsDir string) (*Renderer, error) {
	return NewFS(os.DirFS(fragmentsDir))
}

func parse(fsys fs.FS) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing fragments: %w", err)
	}
	return tmpl, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload reloads templates from disk (useful for dev hot-reload).
func (r *Renderer) Reload(fragmentsDir string) error {
	tmpl, err := parse(os.DirFS(fragmentsDir))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}
