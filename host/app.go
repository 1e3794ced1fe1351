package host

import (
	"context"
	"fmt"
	"log"

	"github.com/noelzubin/compendium_search/search"
	"github.com/noelzubin/compendium_search/search/bleve_indexer"
	"github.com/noelzubin/compendium_search/utils"
)

// App holds the services built from the config.
type App struct {
	Config      *utils.Config
	Store       *bleve_indexer.Store
	Localizer   *Localizer
	Templates   *Templates
	System      *System
	Permissions Permissions
	Settings    *Settings
	Menus       Menus
	Controller  *search.Controller
}

func NewApp(cfg *utils.Config) (*App, error) {
	role, err := ParseRole(cfg.Role)
	if err != nil {
		return nil, err
	}
	perms := Permissions{Role: role}

	loc, err := NewLocalizer(cfg.Language, cfg.LangDir)
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}
	system, err := NewSystem(cfg.SystemFile)
	if err != nil {
		return nil, fmt.Errorf("loading system: %w", err)
	}

	opts := bleve_indexer.Options{GM: perms.IsGM()}
	if cfg.CacheIndex {
		opts.IndexPath = bleve_indexer.DefaultIndexPath()
	}
	store, err := bleve_indexer.NewStore(cfg.DataPath, opts)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:      cfg,
		Store:       store,
		Localizer:   loc,
		Templates:   NewTemplates(loc, cfg.TemplatesDir),
		System:      system,
		Permissions: perms,
		Settings:    NewSettings(cfg.Viper()),
	}
	a.Menus = Menus{Localizer: loc, Resolver: store, Permissions: perms, ExportDir: cfg.ExportDir}
	a.Controller = search.NewController(a.Host(), search.Options{
		Delay:    cfg.Debounce,
		Features: cfg.SearchFeatures(),
	})
	return a, nil
}

func (a *App) Host() search.Host {
	return search.Host{
		Registry:    a.Store,
		Resolver:    a.Store,
		UUIDs:       a.Store,
		Localizer:   a.Localizer,
		Types:       a.System,
		Renderer:    a.Templates,
		Permissions: a.Permissions,
		Settings:    a.Settings,
		Menus:       a.Menus,
	}
}

// Watch calls refresh after every reload of the data directory or settings
// change. It blocks until ctx is done.
func (a *App) Watch(ctx context.Context, refresh func()) error {
	a.Settings.OnChange(func(on bool) {
		log.Printf("search world documents: %v", on)
		refresh()
	})
	a.Settings.Watch()
	return a.Store.Watch(ctx, refresh)
}

func (a *App) Close() error {
	return a.Store.Close()
}
