package host

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/noelzubin/compendium_search/search"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrTemplateNotLoaded = errors.New("template not loaded")

// Templates compiles and renders the hit templates. Every loaded template
// shares one set so templates can include each other by id.
type Templates struct {
	fsys fs.FS
	root string

	mu     sync.RWMutex
	set    *template.Template
	loaded map[string]bool
}

// NewTemplates reads templates from dir, or from the embedded copies when dir
// is empty. The localize helper is available to every template.
func NewTemplates(loc search.Localizer, dir string) *Templates {
	t := &Templates{
		fsys:   templateFS,
		root:   "templates",
		set:    template.New("").Funcs(template.FuncMap{"localize": loc.Localize}),
		loaded: map[string]bool{},
	}
	if dir != "" {
		t.fsys, t.root = os.DirFS(dir), "."
	}
	return t
}

// Load compiles the template with the given id, found by its file name.
// Loading twice is a no-op.
func (t *Templates) Load(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded[id] {
		return nil
	}

	src, err := fs.ReadFile(t.fsys, path.Join(t.root, path.Base(id)))
	if err != nil {
		return fmt.Errorf("reading template %s: %w", id, err)
	}
	if _, err := t.set.New(id).Parse(string(src)); err != nil {
		return fmt.Errorf("parsing template %s: %w", id, err)
	}
	t.loaded[id] = true
	return nil
}

func (t *Templates) Render(_ context.Context, id string, data any) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.loaded[id] {
		return "", fmt.Errorf("%s: %w", id, ErrTemplateNotLoaded)
	}

	var b strings.Builder
	if err := t.set.ExecuteTemplate(&b, id, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
