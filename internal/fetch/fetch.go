// Package fetch downloads upstream market datasets into the data directory.
// Each run issues exactly one GET; nothing is written unless the response is
// a usable 2xx payload.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/marketnotes/internal/apperr"
	"github.com/starford/marketnotes/internal/checksum"
	"github.com/starford/marketnotes/internal/models"
	"github.com/starford/marketnotes/internal/storage"
)

// Catalog records fetched snapshots.
type Catalog interface {
	UpsertDataset(d models.Dataset) error
}

// Request selects what to fetch. Empty Query and Out use the source defaults.
type Request struct {
	Source string
	Query  string
	Out    string
}

// Fetcher runs fetches against a set of sources.
type Fetcher struct {
	exec    *Executor
	sources map[string]Source
	data    storage.Provider
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCatalog records every successful fetch in c.
func WithCatalog(c Catalog) Option {
	return func(f *Fetcher) { f.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithExecutor replaces the default HTTP executor.
func WithExecutor(e *Executor) Option {
	return func(f *Fetcher) { f.exec = e }
}

// New returns a Fetcher writing into data.
func New(data storage.Provider, sources []Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		sources: make(map[string]Source, len(sources)),
		data:    data,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, s := range sources {
		f.sources[s.Name()] = s
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.exec == nil {
		f.exec = NewExecutor()
	}
	return f
}

// Sources returns the registered source names, sorted.
func (f *Fetcher) Sources() []string {
	names := make([]string, 0, len(f.sources))
	for name := range f.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run performs one fetch and returns the recorded snapshot.
func (f *Fetcher) Run(ctx context.Context, r Request) (*models.Dataset, error) {
	src, ok := f.sources[r.Source]
	if !ok {
		return nil, fmt.Errorf("fetch: unknown source %q (have %s): %w",
			r.Source, strings.Join(f.Sources(), ", "), apperr.ErrNotFound)
	}
	query := strings.TrimSpace(r.Query)
	if query == "" {
		query = src.DefaultQuery()
	}
	out := r.Out
	if out == "" {
		out = src.DefaultFile()
	}
	out = path.Clean(strings.TrimPrefix(out, "/"))

	req, err := src.NewRequest(ctx, query)
	if err != nil {
		return nil, err
	}

	logger := f.logger.With("source", src.Name(), "query", query)
	resp, err := f.exec.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: request: %w", src.Name(), err)
	}
	logger.Debug("upstream responded", "status", resp.Status, "bytes", len(resp.Body), "duration", resp.Duration)

	if resp.Status < 200 || resp.Status > 299 {
		return nil, fmt.Errorf("fetch: %s: status %d: %w", src.Name(), resp.Status, apperr.ErrUpstream)
	}
	if len(strings.TrimSpace(string(resp.Body))) == 0 {
		return nil, fmt.Errorf("fetch: %s: %w", src.Name(), apperr.ErrEmptyResponse)
	}
	if err := src.Check(resp.Body); err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", src.Name(), err)
	}

	if err := f.data.Write(out, resp.Body); err != nil {
		return nil, fmt.Errorf("fetch: %s: write %s: %w", src.Name(), out, err)
	}

	ds := &models.Dataset{
		ID:         uuid.NewString(),
		Path:       out,
		Source:     src.Name(),
		Query:      query,
		Checksum:   checksum.Sum(resp.Body),
		Size:       int64(len(resp.Body)),
		StatusCode: resp.Status,
		FetchedAt:  f.now().UTC(),
	}
	if f.catalog != nil {
		if err := f.catalog.UpsertDataset(*ds); err != nil {
			logger.Warn("record dataset failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("dataset fetched", "path", out, "bytes", ds.Size, "checksum", checksum.Short(resp.Body))
	return ds, nil
}
