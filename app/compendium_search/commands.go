package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noelzubin/compendium_search/app/tui"
	"github.com/noelzubin/compendium_search/app/web"
	"github.com/noelzubin/compendium_search/host"
	"github.com/noelzubin/compendium_search/search"
	"github.com/noelzubin/compendium_search/search/bleve_indexer"
	"github.com/noelzubin/compendium_search/utils"
	"github.com/samber/lo"
	"github.com/urfave/cli/v3"
)

// loadConfig reads the config file named by the global flags.
func loadConfig(c *cli.Command) (*utils.Config, error) {
	cfg, err := utils.NewConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.IsSet("data") {
		if err := cfg.Set("data_path", c.String("data")); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func loadApp(c *cli.Command) (*host.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return host.NewApp(cfg)
}

// TUICommand creates the tui command
func TUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Search in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Initial query",
			},
		},
		Action: runTUI,
	}
}

func runTUI(ctx context.Context, c *cli.Command) error {
	app, err := loadApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	// Setup logging, next to the config file.
	logPath := path.Join(path.Dir(c.String("config")), "debug.log")
	f, err := tea.LogToFile(logPath, "debug")
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sheetDir := filepath.Join(os.TempDir(), "compendium_search")
	panel := tui.NewPanel(sheetDir, c.String("query"))
	session, err := app.Controller.Attach(ctx, panel)
	if err != nil {
		return err
	}
	defer session.Close()

	go func() {
		if err := app.Watch(ctx, session.Refresh); err != nil {
			log.Printf("watching %s: %v", app.Config.DataPath, err)
		}
	}()

	opts := tui.Options{
		Editor:      app.Config.Editor,
		Placeholder: app.Localizer.Localize("compendium-search.placeholder"),
		Reload:      app.Store.Reload,
	}
	if app.Config.Features.WorldPacks {
		opts.World = app.Settings
	}

	// Create a new bubbletea Model
	m := tui.New(ctx, session, panel, opts)
	p := tea.NewProgram(m)
	panel.SetProgram(p)
	_, err = p.Run()
	return err
}

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the search panel to browsers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on, overrides listen",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli.Command) error {
	app, err := loadApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := web.NewServer(ctx, app.Controller)
	go func() {
		if err := app.Watch(ctx, srv.Refresh); err != nil {
			log.Printf("watching %s: %v", app.Config.DataPath, err)
		}
	}()

	addr := app.Config.Listen
	if c.IsSet("listen") {
		addr = c.String("listen")
	}
	return srv.ListenAndServe(addr)
}

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Print the documents matching a query",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "type",
				Usage: "Only search documents of this type (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "world",
				Usage: "Include world documents",
			},
			&cli.BoolFlag{
				Name:  "html",
				Usage: "Print the rendered hits",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchDocuments(ctx, c, strings.Join(c.Args().Slice(), " "))
		},
	}
}

// oneShot is a panel for a single filter pass.
type oneShot struct {
	query   string
	filters []string
}

func (p oneShot) Query() string                                     { return p.query }
func (p oneShot) ActiveFilters() []string                           { return p.filters }
func (p oneShot) Replace(search.Rendering, search.Handlers)         {}
func (p oneShot) OpenSheet(context.Context, *search.Document) error { return nil }
func (p oneShot) AddContextMenu(search.ContextMenu)                 {}
func (p oneShot) CloseContextMenu()                                 {}

func searchDocuments(ctx context.Context, c *cli.Command, query string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.Bool("world") {
		cfg.Viper().Set(host.SearchWorldPacksKey, true)
	}
	app, err := host.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	session, err := app.Controller.Attach(ctx, oneShot{query: query, filters: c.StringSlice("type")})
	if err != nil {
		return err
	}
	defer session.Close()

	hits, ok := session.Filter(query)
	if !ok {
		return fmt.Errorf("nothing to search for in %q", query)
	}

	if c.Bool("html") {
		html, err := app.Templates.Render(ctx, search.HitsTemplate, map[string]any{"hits": hits})
		if err != nil {
			return err
		}
		fmt.Println(html)
		return nil
	}

	fmt.Printf("Found %d results:\n", len(hits))
	for i, hit := range hits {
		name := hit.Name
		if hit.OriginalName != "" {
			name += " (" + hit.OriginalName + ")"
		}
		fmt.Printf("%d. %s\n   %s\n   %s\n", i+1, name, hit.Details, hit.UUID)
	}
	return nil
}

// IndexCommand creates the index command
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Build the document cache and list the packs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rebuild",
				Usage: "Delete the cache first",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("rebuild") {
				dir := filepath.Dir(bleve_indexer.DefaultIndexPath())
				if err := os.RemoveAll(dir); err != nil {
					return err
				}
			}

			app, err := loadApp(c)
			if err != nil {
				return err
			}
			defer app.Close()

			manifest := app.Store.Manifest()
			fmt.Printf("%s (%s)\n", manifest.Title, manifest.PackageID())
			for _, p := range app.Store.Packs() {
				visibility := lo.Ternary(p.Visible, "", " [hidden]")
				fmt.Printf("  %-24s %-14s %5d%s\n", p.Name, p.DocumentName, len(p.Index), visibility)
			}
			for _, wc := range search.WorldCollections {
				fmt.Printf("  %-24s %-14s %5d\n", "world/"+wc.Collection, wc.DocumentName, len(app.Store.World(wc.Collection)))
			}
			return nil
		},
	}
}
