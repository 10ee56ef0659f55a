// Package pageservice answers read-only queries about the docs tree and the
// dataset catalog for the preview API and the MCP tools.
package pageservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/starford/marketnotes/internal/apperr"
	"github.com/starford/marketnotes/internal/checksum"
	"github.com/starford/marketnotes/internal/index"
	"github.com/starford/marketnotes/internal/models"
	"github.com/starford/marketnotes/internal/parser"
	"github.com/starford/marketnotes/internal/storage"
)

// PageDetail is the full representation of a page.
type PageDetail struct {
	Path        string         `json:"path"`
	URL         string         `json:"url,omitempty"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Links       []string       `json:"links"`
	Backlinks   []string       `json:"backlinks"`
	Draft       bool           `json:"draft,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// PageListItem is a lightweight item in a list response.
type PageListItem struct {
	Path      string    `json:"path"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service combines the docs store with the page index and dataset catalog.
type Service struct {
	store    storage.Provider
	pages    index.PageIndex
	datasets index.DatasetCatalog
	urlFor   func(src string) string
}

// Option configures a Service.
type Option func(*Service)

// WithURLs attaches the rendered-site URL of each page to responses.
func WithURLs(urlFor func(src string) string) Option {
	return func(s *Service) { s.urlFor = urlFor }
}

// NewService creates a page service.
func NewService(store storage.Provider, pages index.PageIndex, datasets index.DatasetCatalog, opts ...Option) *Service {
	s := &Service{store: store, pages: pages, datasets: datasets}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPage reads a page from the docs tree and enriches it with backlinks.
func (s *Service) GetPage(_ context.Context, p string) (*PageDetail, error) {
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if !strings.HasSuffix(p, ".md") {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.pages.Backlinks(p)
	if err != nil {
		return nil, err
	}

	detail := &PageDetail{
		Path:        p,
		URL:         s.url(p),
		Title:       res.Title,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Tags:        nonNilSlice(res.Tags),
		Frontmatter: res.Frontmatter,
		Links:       nonNilSlice(res.Targets(p)),
		Backlinks:   nonNilSlice(bl),
		Draft:       res.Draft,
	}
	if row, err := s.pages.GetPage(p); err == nil {
		detail.UpdatedAt = row.UpdatedAt
	}
	return detail, nil
}

// ListPages returns paginated pages with an optional tag filter.
func (s *Service) ListPages(_ context.Context, limit, offset int, tag, sort string) ([]PageListItem, int, error) {
	rows, total, err := s.pages.ListPages(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]PageListItem, len(rows))
	for i, r := range rows {
		items[i] = PageListItem{
			Path:      r.Path,
			URL:       s.url(r.Path),
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNilSlice(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.pages.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Graph returns all pages and the links between them.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	nodes, links, err := s.pages.Graph()
	if err != nil {
		return nil, nil, err
	}
	return nonNilSlice(nodes), nonNilSlice(links), nil
}

// Backlinks returns the pages linking to target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	bl, err := s.pages.Backlinks(path.Clean(strings.TrimPrefix(target, "/")))
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}

// ListDatasets returns catalogued snapshots, newest first. An empty source
// lists all of them.
func (s *Service) ListDatasets(_ context.Context, source string) ([]models.Dataset, error) {
	if s.datasets == nil {
		return []models.Dataset{}, nil
	}
	ds, err := s.datasets.ListDatasets(source)
	if err != nil {
		return nil, fmt.Errorf("pageservice: list datasets: %w", err)
	}
	return nonNilSlice(ds), nil
}

// GetDataset returns the catalog entry for a data-directory path.
func (s *Service) GetDataset(_ context.Context, p string) (*models.Dataset, error) {
	if s.datasets == nil {
		return nil, apperr.ErrNotFound
	}
	return s.datasets.GetDataset(p)
}

func (s *Service) url(p string) string {
	if s.urlFor == nil {
		return ""
	}
	return s.urlFor(p)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
