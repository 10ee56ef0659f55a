package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/starford/marketnotes/internal/analysis"
	"github.com/starford/marketnotes/internal/fetch"
	"github.com/starford/marketnotes/internal/index"
	"github.com/starford/marketnotes/internal/mcpserver"
	"github.com/starford/marketnotes/internal/pageservice"
	"github.com/starford/marketnotes/internal/ranker"
	"github.com/starford/marketnotes/internal/site"
	"github.com/starford/marketnotes/internal/storage"
)

// ErrUnresolvedLinks is returned by a strict build that found broken links.
var ErrUnresolvedLinks = errors.New("unresolved links")

func (a *application) printer() *message.Printer {
	return message.NewPrinter(language.AmericanEnglish)
}

func (a *application) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Build renders the docs tree into the site directory once.
func Build(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	cfg := app.config

	docs, err := storage.NewFS(cfg.Site.DocsDir)
	if err != nil {
		return fmt.Errorf("open docs dir: %w", err)
	}
	builder, err := site.NewBuilder(cfg.Site.Options(app.clean, false), docs, logger)
	if err != nil {
		return err
	}
	report, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	if app.format == "json" {
		if err := app.printJSON(report); err != nil {
			return err
		}
	} else {
		p := app.printer()
		p.Fprintf(app.stdout, "Built %d pages and %d assets into %s in %v\n",
			report.Pages, report.Assets, builder.SiteDir(), report.Duration.Round(time.Millisecond))
		if report.Drafts > 0 {
			p.Fprintf(app.stdout, "Skipped %d drafts\n", report.Drafts)
		}
		if report.Removed > 0 {
			p.Fprintf(app.stdout, "Removed %d stale files\n", report.Removed)
		}
		for _, u := range report.Unresolved {
			p.Fprintf(app.stdout, "WARNING %s: link to %s matches no page\n", u.Page, u.Dest)
		}
	}

	if app.strict && len(report.Unresolved) > 0 {
		return fmt.Errorf("strict build: %d %w", len(report.Unresolved), ErrUnresolvedLinks)
	}
	return nil
}

// Fetch performs one request against source and writes the body into the
// data directory. query and out fall back to the source defaults.
func Fetch(ctx context.Context, source, query, out string, opts ...Option) error {
	app, logger, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	cfg := app.config

	creds, err := fetch.LoadCredentials()
	if err != nil {
		return err
	}
	data, err := storage.EnsureFS(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("init data dir: %w", err)
	}

	fopts := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithExecutor(cfg.Fetch.Executor()),
	}
	if db, err := index.Open(cfg.SQLite.Path); err != nil {
		logger.Warn("dataset catalog unavailable", slog.String("error", err.Error()))
	} else {
		defer db.Close()
		fopts = append(fopts, fetch.WithCatalog(db))
	}

	ds, err := fetch.New(data, cfg.Fetch.Sources(creds), fopts...).Run(ctx, fetch.Request{
		Source: source,
		Query:  query,
		Out:    out,
	})
	if err != nil {
		return err
	}

	if app.format == "json" {
		return app.printJSON(ds)
	}
	app.printer().Fprintf(app.stdout, "Saved %s (%d bytes)\n", filepath.Join(cfg.Data.Dir, ds.Path), ds.Size)
	return nil
}

// Datasets prints the catalog of fetched snapshots.
func Datasets(ctx context.Context, source string, opts ...Option) error {
	app, _, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}

	db, err := index.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	list, err := pageservice.NewService(nil, db, db).ListDatasets(ctx, source)
	if err != nil {
		return err
	}

	if app.format == "json" {
		return app.printJSON(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(app.stdout, "No datasets fetched yet")
		return err
	}
	p := app.printer()
	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSOURCE\tQUERY\tSIZE\tFETCHED")
	for _, d := range list {
		p.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			d.Path, d.Source, d.Query, d.Size, d.FetchedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

// Rank scores the stocks in a portfolio file. weightsPath, when set,
// replaces the portfolio's own weights.
func Rank(_ context.Context, portfolioPath, weightsPath string, opts ...Option) error {
	app, _, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(portfolioPath)
	if err != nil {
		return fmt.Errorf("read portfolio: %w", err)
	}
	portfolio, err := ranker.ParsePortfolio(raw)
	if err != nil {
		return err
	}

	weights := portfolio.Weights
	if weightsPath != "" {
		raw, err := os.ReadFile(weightsPath)
		if err != nil {
			return fmt.Errorf("read weights: %w", err)
		}
		if weights, err = ranker.ParseWeights(raw); err != nil {
			return err
		}
	}
	if len(weights) == 0 {
		weights = nil
	}

	r, err := ranker.New(weights)
	if err != nil {
		return err
	}
	results, err := r.Rank(portfolio.Stocks)
	if err != nil {
		return err
	}

	if app.format == "json" {
		return app.printJSON(results)
	}
	return writeRanking(app.stdout, app.printer(), results)
}

func writeRanking(w io.Writer, p *message.Printer, results []ranker.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STOCK\tALLOCATION\tSCORE\tVERDICT")
	for _, r := range results {
		p.Fprintf(tw, "%s\t%.2f/10\t%.2f\t%s\n", r.Name, r.Allocation, r.TotalScore, r.Verdict)
	}
	return tw.Flush()
}

type correlationOutput struct {
	Points  int      `json:"points"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	SameDay *float64 `json:"same_day"`
	Lag1    *float64 `json:"lag_1"`
}

// Correlate compares a search-interest CSV with the daily volume in a stock
// snapshot. An empty stockPath reads the default snapshot in the data dir.
func Correlate(_ context.Context, trendPath, stockPath string, opts ...Option) error {
	app, _, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	if stockPath == "" {
		stockPath = filepath.Join(app.config.Data.Dir, fetch.AlphaVantage{}.DefaultFile())
	}

	raw, err := os.ReadFile(stockPath)
	if err != nil {
		return fmt.Errorf("read stock data: %w", err)
	}
	volume, err := analysis.LoadVolume(raw)
	if err != nil {
		return err
	}

	f, err := os.Open(trendPath)
	if err != nil {
		return fmt.Errorf("read trend data: %w", err)
	}
	defer f.Close()
	interest, err := analysis.LoadTrend(f)
	if err != nil {
		return err
	}

	report, err := analysis.Correlate(interest, volume)
	if err != nil {
		return err
	}

	if app.format == "json" {
		return app.printJSON(correlationOutput{
			Points:  report.Points,
			From:    report.From.Format(time.DateOnly),
			To:      report.To.Format(time.DateOnly),
			SameDay: finite(report.SameDay),
			Lag1:    finite(report.Lag1),
		})
	}
	p := app.printer()
	p.Fprintf(app.stdout, "Overlapping days: %d (%s to %s)\n",
		report.Points, report.From.Format(time.DateOnly), report.To.Format(time.DateOnly))
	p.Fprintf(app.stdout, "Same-day correlation: %.3f\n", report.SameDay)
	p.Fprintf(app.stdout, "Lag-1 correlation: %.3f\n", report.Lag1)
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ServeMCP indexes the docs tree and serves the read-only MCP tools on
// stdin/stdout. Logs go to stderr so they never mix with the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, logger, err := newApplication(os.Stderr, opts)
	if err != nil {
		return err
	}
	cfg := app.config

	docs, err := storage.NewFS(cfg.Site.DocsDir)
	if err != nil {
		return fmt.Errorf("open docs dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if err := index.Sync(db, docs, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	builder, err := site.NewBuilder(cfg.Site.Options(false, false), docs, logger)
	if err != nil {
		return err
	}
	svc := pageservice.NewService(docs, db, db, pageservice.WithURLs(builder.URLFor))

	logger.Info("MCP server starting on stdio", slog.String("docs_dir", cfg.Site.DocsDir))
	return mcpserver.New(svc, app.version).ServeStdio()
}
