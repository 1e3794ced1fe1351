package host

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"golang.org/x/text/language"
)

//go:embed lang/*.toml
var langFS embed.FS

const fallbackLang = "en"

// Localizer resolves dotted translation keys. Unknown keys resolve to themselves.
type Localizer struct {
	lang    language.Tag
	strings map[string]string
}

// NewLocalizer loads the translations closest to lang. The embedded tables are
// always available; dir may add or override languages.
func NewLocalizer(lang, dir string) (*Localizer, error) {
	tables := map[string][]byte{}
	if err := readTables(langFS, "lang", tables); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := readTables(os.DirFS(dir), ".", tables); err != nil {
			return nil, fmt.Errorf("reading %s: %w", dir, err)
		}
	}

	names := lo.Keys(tables)
	// the fallback goes first so the matcher defaults to it
	names = append([]string{fallbackLang}, lo.Without(names, fallbackLang)...)
	tags := lo.Map(names, func(n string, _ int) language.Tag { return language.Make(n) })

	_, idx, _ := language.NewMatcher(tags).Match(language.Make(lang))
	chosen := names[idx]

	l := &Localizer{lang: tags[idx], strings: map[string]string{}}
	for _, name := range lo.Uniq([]string{fallbackLang, chosen}) {
		data, ok := tables[name]
		if !ok {
			continue
		}
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parsing %s translations: %w", name, err)
		}
		flatten("", tree, l.strings)
	}
	return l, nil
}

func readTables(fsys fs.FS, dir string, tables map[string][]byte) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".toml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		tables[strings.TrimSuffix(e.Name(), ".toml")] = data
	}
	return nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case map[string]any:
			flatten(key, v, out)
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

// Lang is the language that was loaded.
func (l *Localizer) Lang() language.Tag {
	return l.lang
}

func (l *Localizer) Localize(key string) string {
	if v, ok := l.strings[key]; ok {
		return v
	}
	return key
}
