package main

import (
	"context"
	"log"
	"os"

	"github.com/noelzubin/compendium_search/utils"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "compendium_search",
		Usage: "Search the compendium packs and world documents of a package",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: utils.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Package data directory, overrides data_path",
			},
		},
		Commands: []*cli.Command{
			TUICommand(),
			ServeCommand(),
			SearchCommand(),
			IndexCommand(),
		},
		// Without a command the terminal panel is started.
		Action: func(ctx context.Context, c *cli.Command) error {
			return runTUI(ctx, c)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
