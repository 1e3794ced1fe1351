package utils

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/noelzubin/compendium_search/search"
	"github.com/spf13/viper"
)

// Features mirrors search.Features in the config file.
type Features struct {
	WorldPacks    bool `mapstructure:"world_packs"`
	DragDrop      bool `mapstructure:"drag_drop"`
	ContextMenus  bool `mapstructure:"context_menus"`
	OriginalNames bool `mapstructure:"original_names"`
}

// Config is the cofiguration for the application
type Config struct {
	DataPath     string        `mapstructure:"data_path"`     // Package data directory (module.json, packs, data)
	Editor       string        `mapstructure:"editor"`        // Editor to open document sheets with
	Language     string        `mapstructure:"language"`      // Preferred language of the translations
	LangDir      string        `mapstructure:"lang_dir"`      // Extra translation tables
	TemplatesDir string        `mapstructure:"templates_dir"` // Replacement hit templates
	SystemFile   string        `mapstructure:"system_file"`   // Type labels and icons override
	ExportDir    string        `mapstructure:"export_dir"`    // Where exported documents are written
	Role         string        `mapstructure:"role"`          // User role: player, trusted, assistant, gamemaster
	Debounce     time.Duration `mapstructure:"debounce"`      // Delay between the last keystroke and the search
	CacheIndex   bool          `mapstructure:"cache_index"`   // Keep the document cache on disk
	Listen       string        `mapstructure:"listen"`        // Address of the web panel
	Features     Features      `mapstructure:"features"`

	v *viper.Viper
}

// DefaultConfigPath is where the config file is read from when none is given.
func DefaultConfigPath() string {
	homedir, _ := os.UserHomeDir()
	return path.Join(homedir, "/.config/compendium_search/config.yaml")
}

// NewConfig returns a new Config object by reading from the config file.
// Values can be overridden with COMPENDIUM_SEARCH_* variables, also read from a
// .env file in the working directory.
func NewConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("compendium_search")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_path", ".")
	v.SetDefault("editor", os.Getenv("EDITOR"))
	v.SetDefault("language", "en")
	v.SetDefault("role", "gamemaster")
	v.SetDefault("debounce", search.DefaultDelay)
	v.SetDefault("cache_index", true)
	v.SetDefault("listen", "127.0.0.1:30001")
	v.SetDefault("features.world_packs", true)
	v.SetDefault("features.drag_drop", true)
	v.SetDefault("features.context_menus", true)
	v.SetDefault("features.original_names", true)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// first run: create the file from the defaults
		if err := os.MkdirAll(path.Dir(configPath), 0700); err != nil {
			return nil, err
		}
		if err := v.SafeWriteConfigAs(configPath); err != nil {
			return nil, fmt.Errorf("failed to create config file: %w", err)
		}
	}

	config := &Config{v: v}
	if err := config.load(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) load() error {
	*c = Config{v: c.v}
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to parse the config file: %w", err)
	}
	if c.ExportDir == "" {
		c.ExportDir = path.Join(c.DataPath, "exports")
	}
	return nil
}

// Set overrides a value for this run, e.g. from a command line flag.
func (c *Config) Set(key string, value any) error {
	c.v.Set(key, value)
	return c.load()
}

// Viper returns the store the config was read from; runtime settings live there.
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// SearchFeatures converts the configured features.
func (c *Config) SearchFeatures() search.Features {
	return search.Features{
		WorldPacks:    c.Features.WorldPacks,
		DragDrop:      c.Features.DragDrop,
		ContextMenus:  c.Features.ContextMenus,
		OriginalNames: c.Features.OriginalNames,
	}
}
