package host

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed system.toml
var systemTOML []byte

type documentConfig struct {
	DefaultIcon string            `toml:"default_icon"`
	Types       map[string]string `toml:"types"` // subtype -> translation key
}

// System is the per document type configuration of the game system: subtype
// labels and default icons.
type System struct {
	docs map[string]documentConfig
}

// NewSystem loads the built in configuration, then the file at path on top of
// it when path is set.
func NewSystem(path string) (*System, error) {
	s := &System{docs: map[string]documentConfig{}}
	if err := s.merge(systemTOML); err != nil {
		return nil, err
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.merge(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s *System) merge(data []byte) error {
	var docs map[string]documentConfig
	if err := toml.Unmarshal(data, &docs); err != nil {
		return err
	}
	for name, cfg := range docs {
		cur := s.docs[name]
		if cfg.DefaultIcon != "" {
			cur.DefaultIcon = cfg.DefaultIcon
		}
		if cur.Types == nil {
			cur.Types = map[string]string{}
		}
		for k, v := range cfg.Types {
			cur.Types[k] = v
		}
		s.docs[name] = cur
	}
	return nil
}

func (s *System) TypeLabel(documentName, subtype string) (string, bool) {
	key, ok := s.docs[documentName].Types[subtype]
	return key, ok
}

func (s *System) BaseLabel(documentName string) string {
	if key, ok := s.docs[documentName].Types["base"]; ok {
		return key
	}
	return "TYPES." + documentName + ".base"
}

func (s *System) DefaultIcon(documentName string) string {
	return s.docs[documentName].DefaultIcon
}
