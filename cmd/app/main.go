package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/marketnotes/internal"
	pkgconfig "github.com/starford/marketnotes/pkg/config"
)

var version = "dev"

// loadConfig reads --config over the defaults. The default path may be
// absent; an explicitly named file must exist.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cmd.IsSet("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// options builds the shared application options for a command.
func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithFormat(cmd.String("format")),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	opts = append(opts, internal.WithClean(cmd.Bool("clean")))
	if err := internal.Serve(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func build(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	opts = append(opts,
		internal.WithClean(cmd.Bool("clean")),
		internal.WithStrict(cmd.Bool("strict")),
	)
	return internal.Build(ctx, opts...)
}

func fetchAction(source string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		opts, err := options(cmd)
		if err != nil {
			return err
		}
		return internal.Fetch(ctx, source, cmd.Args().First(), cmd.String("out"), opts...)
	}
}

func datasets(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Datasets(ctx, cmd.String("source"), opts...)
}

func rank(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("rank: expected one portfolio file, got %d arguments", cmd.Args().Len())
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Rank(ctx, cmd.Args().First(), cmd.String("weights"), opts...)
}

func correlate(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("correlate: expected one trend CSV, got %d arguments", cmd.Args().Len())
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.Correlate(ctx, cmd.Args().First(), cmd.String("stock"), opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "format",
		Usage: "Output format: text or json",
		Value: "text",
		Validator: func(v string) error {
			if v != "text" && v != "json" {
				return fmt.Errorf("unsupported format %q", v)
			}
			return nil
		},
	}
}

func outFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "out",
		Usage: "File name inside data.dir (defaults to the source's file)",
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "marketnotes",
		Usage:   "Market research notes: static docs site, data fetchers and analysis helpers",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Build the site and serve a live-reloading preview",
				Action: serve,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clean", Usage: "Empty site_dir before the first build"},
				},
			},
			{
				Name:   "build",
				Usage:  "Render the docs tree into site_dir",
				Action: build,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clean", Usage: "Empty site_dir before building", Value: true},
					&cli.BoolFlag{Name: "strict", Usage: "Fail when a page links to a missing page"},
					formatFlag(),
				},
			},
			{
				Name:  "fetch",
				Usage: "Fetch one snapshot from a data API into data.dir",
				Commands: []*cli.Command{
					{
						Name:      "stock",
						Usage:     "Alpha Vantage daily time series (ALPHAVANTAGE_API_KEY)",
						ArgsUsage: "[SYMBOL]",
						Action:    fetchAction("stock"),
						Flags:     []cli.Flag{outFlag(), formatFlag()},
					},
					{
						Name:      "news",
						Usage:     "NewsAPI top headlines (NEWSAPI_KEY)",
						ArgsUsage: "[CATEGORY]",
						Action:    fetchAction("news"),
						Flags:     []cli.Flag{outFlag(), formatFlag()},
					},
				},
			},
			{
				Name:   "datasets",
				Usage:  "List fetched snapshots",
				Action: datasets,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "Only list snapshots from this source (stock, news)"},
					formatFlag(),
				},
			},
			{
				Name:      "rank",
				Usage:     "Score stocks in a portfolio YAML and suggest allocations",
				ArgsUsage: "PORTFOLIO",
				Action:    rank,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "weights", Aliases: []string{"w"}, Usage: "Weights YAML replacing the portfolio's weights"},
					formatFlag(),
				},
			},
			{
				Name:      "correlate",
				Usage:     "Correlate search interest with daily trading volume",
				ArgsUsage: "TREND_CSV",
				Action:    correlate,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stock", Usage: "Stock snapshot (defaults to data.dir/stock_data.json)"},
					formatFlag(),
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
