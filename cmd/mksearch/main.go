package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/akimixu/mksearch/internal"
	"github.com/akimixu/mksearch/internal/searchservice"
	pkgconfig "github.com/akimixu/mksearch/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")

	load := pkgconfig.LoadOptional[internal.Config]
	if cmd.IsSet("config") {
		load = pkgconfig.Load[internal.Config]
	}
	if err := load(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if root := cmd.String("root"); root != "" {
		cfg.Workspace.Root = root
	}
	return cfg, nil
}

// searchRequest merges the command flags over the configured defaults.
func searchRequest(cmd *cli.Command, cfg *internal.Config) (searchservice.Request, error) {
	if cmd.Args().Len() == 0 {
		return searchservice.Request{}, fmt.Errorf("missing KEYWORDS argument")
	}
	req := searchservice.Request{
		Keywords:       strings.Join(cmd.Args().Slice(), ","),
		IncludePattern: cfg.Search.Include,
		ExcludePattern: cfg.Search.ExcludeFolders,
		CaseSensitive:  cfg.Search.CaseSensitive,
		WholeWord:      cfg.Search.WholeWord,
		MaxResults:     int(cmd.Int("max-results")),
	}
	if cmd.IsSet("include") {
		req.IncludePattern = cmd.String("include")
	}
	if cmd.IsSet("exclude") {
		req.ExcludePattern = cmd.String("exclude")
	}
	if cmd.IsSet("case-sensitive") {
		req.CaseSensitive = cmd.Bool("case-sensitive")
	}
	if cmd.IsSet("whole-word") {
		req.WholeWord = cmd.Bool("whole-word")
	}
	return req, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}
	if cmd.Bool("watch") {
		cfg.Watch.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func search(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := searchRequest(cmd, cfg)
	if err != nil {
		return err
	}
	if cmd.Bool("no-color") {
		color.NoColor = true
	}

	q := internal.SearchQuery{
		Request:   req,
		JSON:      cmd.Bool("json"),
		Positions: int(cmd.Int("positions")),
	}
	_, err = internal.RunSearch(ctx, q, internal.WithConfig(cfg))
	return err
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := searchRequest(cmd, cfg)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, req, internal.WithConfig(cfg))
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func showHistory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunHistory(ctx, int(cmd.Int("limit")), cmd.Bool("clear"), internal.WithConfig(cfg))
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "include",
			Aliases: []string{"i"},
			Usage:   "Glob of files to search, e.g. **/*.{go,ts}",
		},
		&cli.StringFlag{
			Name:    "exclude",
			Aliases: []string{"e"},
			Usage:   "Comma-separated folder names to skip",
		},
		&cli.BoolFlag{
			Name:  "case-sensitive",
			Usage: "Match keyword case exactly",
		},
		&cli.BoolFlag{
			Name:    "whole-word",
			Aliases: []string{"w"},
			Usage:   "Only match whole words",
		},
		&cli.IntFlag{
			Name:  "max-results",
			Usage: "Stop after this many matching files (0 = unlimited)",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "mksearch",
		Usage:   "Find files that contain all of several keywords",
		Version: internal.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml or .toml)",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root, overrides workspace.root",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and SSE event stream",
				Action: serve,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP port, overrides app.http.port",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Broadcast workspace.changed events",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search once and print matching files",
				ArgsUsage: "KEYWORDS...",
				Action:    search,
				Flags: append(filterFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print protocol events as NDJSON",
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable coloured output",
					},
					&cli.IntFlag{
						Name:  "positions",
						Usage: "Positions printed per keyword (0 = all)",
						Value: 3,
					},
				),
			},
			{
				Name:      "tui",
				Usage:     "Search with a live terminal view (s stops, q quits)",
				ArgsUsage: "KEYWORDS...",
				Action:    runTUI,
				Flags:     filterFlags(),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: runMCP,
			},
			{
				Name:   "history",
				Usage:  "Show recent searches",
				Action: showHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of searches to show",
					},
					&cli.BoolFlag{
						Name:  "clear",
						Usage: "Delete all recorded searches",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
