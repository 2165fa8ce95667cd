package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/xmltable/internal"
	pkgconfig "github.com/starford/xmltable/pkg/config"
)

// overrideFlags replace config values when set on the command line.
func overrideFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Root directory of the XML exports"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "CSV file to write"},
		&cli.StringFlag{Name: "tag", Usage: "Local name of the field element"},
		&cli.StringFlag{Name: "delimiter", Aliases: []string{"d"}, Usage: "CSV field delimiter (one character)"},
		&cli.BoolFlag{Name: "noheader", Usage: "Drop the first record and omit the CSV header row"},
		&cli.StringFlag{Name: "encoding", Usage: "Output charset (e.g. utf-8, windows-1252)"},
		&cli.StringFlag{Name: "input-encoding", Usage: "Force the input charset instead of the XML declaration"},
		&cli.IntFlag{Name: "limit", Usage: "Maximum field elements read per file (-1 = unlimited)"},
		&cli.IntFlag{Name: "buffer-size", Usage: "Records accumulated before an interim snapshot is written"},
		&cli.StringFlag{Name: "suffix", Usage: "Input file name suffix"},
		&cli.StringFlag{Name: "prefix", Usage: "Column name prefix selecting the dedup key fields"},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}

	if cmd.IsSet("input") {
		cfg.Input.Root = cmd.String("input")
	}
	if cmd.IsSet("output") {
		cfg.Output.Path = cmd.String("output")
	}
	if cmd.IsSet("tag") {
		cfg.Convert.RecordTag = cmd.String("tag")
	}
	if cmd.IsSet("delimiter") {
		cfg.Output.Delimiter = cmd.String("delimiter")
	}
	if cmd.IsSet("noheader") {
		cfg.Output.NoHeader = cmd.Bool("noheader")
	}
	if cmd.IsSet("encoding") {
		cfg.Output.Encoding = cmd.String("encoding")
	}
	if cmd.IsSet("input-encoding") {
		cfg.Input.Encoding = cmd.String("input-encoding")
	}
	if cmd.IsSet("limit") {
		cfg.Convert.RecordLimit = int(cmd.Int("limit"))
	}
	if cmd.IsSet("buffer-size") {
		cfg.Convert.BufferSize = int(cmd.Int("buffer-size"))
	}
	if cmd.IsSet("suffix") {
		cfg.Input.Suffix = cmd.String("suffix")
	}
	if cmd.IsSet("prefix") {
		cfg.Convert.DedupPrefix = cmd.String("prefix")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func action(mode internal.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithMode(mode),
		}

		if err := internal.Run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "xmltable",
		Usage: "Convert trees of spreadsheet-style XML exports into one deduplicated CSV table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("XMLTABLE_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "convert",
				Usage:  "Run one conversion and exit",
				Flags:  overrideFlags(),
				Action: action(internal.ModeConvert),
			},
			{
				Name:   "serve",
				Usage:  "Convert, then watch the input tree and serve the HTTP API",
				Flags:  overrideFlags(),
				Action: action(internal.ModeServe),
			},
			{
				Name:   "mcp",
				Usage:  "Serve conversion tools over MCP stdio",
				Flags:  overrideFlags(),
				Action: action(internal.ModeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
