package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates holds one parsed tree per page so each page's "content" block
// does not collide with the others.
type Templates struct {
	pages map[string]*template.Template
}

var funcMap = template.FuncMap{
	"minutes": formatMinutes,
	"title":   capitalize,
}

// LoadTemplates parses the embedded layout and clones it for every page.
func LoadTemplates() (*Templates, error) {
	base, err := template.New("base").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob page templates: %w", err)
	}

	pages := map[string]*template.Template{}
	for _, f := range files {
		name := path.Base(f)
		if name == "layout.html" {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, f); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		pages[name] = clone
	}
	return &Templates{pages: pages}, nil
}

// Render executes the named page inside the layout.
func (t *Templates) Render(w io.Writer, name string, data any) error {
	tmpl, ok := t.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func formatMinutes(total int) string {
	hours, minutes := total/60, total%60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%d min", minutes)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
