package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/marketnotes/internal/parser"
	"github.com/starford/marketnotes/internal/storage"
)

// ErrOverlappingDirs is returned when the site directory and the docs
// directory are the same or nested inside one another.
var ErrOverlappingDirs = errors.New("site: site_dir and docs_dir overlap")

const searchIndexPath = "search/search_index.json"

// UnresolvedLink is a .md link whose target page does not exist.
type UnresolvedLink struct {
	Page string `json:"page"`
	Dest string `json:"dest"`
}

// Report summarizes one build.
type Report struct {
	Pages      int              `json:"pages"`
	Assets     int              `json:"assets"`
	Drafts     int              `json:"drafts"`
	Removed    int              `json:"removed"`
	Unresolved []UnresolvedLink `json:"unresolved,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Builder renders a docs tree into SiteDir. Builds are serialized.
type Builder struct {
	opts     Options
	docs     storage.Provider
	renderer *Renderer
	layout   *template.Template
	logger   *slog.Logger

	mu sync.Mutex
}

// NewBuilder validates opts and prepares the Markdown engine and layout.
func NewBuilder(opts Options, docs storage.Provider, logger *slog.Logger) (*Builder, error) {
	if opts.SiteDir == "" {
		return nil, errors.New("site: site_dir is required")
	}
	if err := checkDirs(docs.Root(), opts.SiteDir); err != nil {
		return nil, err
	}
	layout, err := loadLayout()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		opts:     opts,
		docs:     docs,
		renderer: NewRenderer(opts.Markdown),
		layout:   layout,
		logger:   logger,
	}, nil
}

// SiteDir returns the output directory.
func (b *Builder) SiteDir() string {
	return b.opts.SiteDir
}

type sourcePage struct {
	src   string
	title string
	body  string
}

type searchIndex struct {
	Config searchConfig `json:"config"`
	Docs   []searchDoc  `json:"docs"`
}

type searchConfig struct {
	Lang      []string `json:"lang"`
	Separator string   `json:"separator"`
}

type searchDoc struct {
	Location string `json:"location"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

// Build renders every non-draft page, copies assets and writes the search
// index. Files left over from earlier builds are removed.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	report := &Report{}

	if b.opts.Clean {
		if err := os.RemoveAll(b.opts.SiteDir); err != nil {
			return nil, fmt.Errorf("site: clean %s: %w", b.opts.SiteDir, err)
		}
	}
	out, err := storage.EnsureFS(b.opts.SiteDir)
	if err != nil {
		return nil, err
	}

	files, err := b.docs.Files("")
	if err != nil {
		return nil, fmt.Errorf("site: list docs: %w", err)
	}

	var (
		pages  []sourcePage
		assets []string
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasSuffix(f.Path, ".md") {
			assets = append(assets, f.Path)
			continue
		}
		data, err := b.docs.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("site: read %s: %w", f.Path, err)
		}
		res, err := parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("site: parse %s: %w", f.Path, err)
		}
		if res.Draft {
			report.Drafts++
			continue
		}
		title := res.Title
		if title == "" {
			title = titleFromPath(f.Path)
		}
		pages = append(pages, sourcePage{src: f.Path, title: title, body: res.Body})
	}

	srcs := make([]string, len(pages))
	titles := make(map[string]string, len(pages))
	for i, p := range pages {
		srcs[i] = p.src
		titles[p.src] = p.title
	}
	routes := buildRoutes(srcs, b.opts.UseDirectoryURLs)

	nav := autoNav(routes, titles)
	if len(b.opts.Nav) > 0 {
		var missing []string
		nav, missing = explicitNav(b.opts.Nav, routes)
		for _, m := range missing {
			b.logger.Warn("nav entry points at missing page", "path", m)
		}
	}

	written := make(map[string]struct{})
	write := func(p string, data []byte) error {
		if err := out.Write(p, data); err != nil {
			return fmt.Errorf("site: write %s: %w", p, err)
		}
		written[p] = struct{}{}
		return nil
	}

	resolve := routeResolver(routes)
	index := searchIndex{
		Config: searchConfig{Lang: []string{"en"}, Separator: `[\s\-]+`},
		Docs:   make([]searchDoc, 0, len(pages)),
	}
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		route := routes[p.src]
		rendered, err := b.renderer.Render(p.src, []byte(p.body), resolve)
		if err != nil {
			return nil, err
		}
		for _, dest := range rendered.Unresolved {
			report.Unresolved = append(report.Unresolved, UnresolvedLink{Page: p.src, Dest: dest})
		}
		html, err := executeLayout(b.layout, pageData{
			SiteName:   b.opts.Name,
			Title:      p.title,
			Nav:        markActive(nav, route.URL),
			TOC:        rendered.TOC,
			Content:    template.HTML(rendered.HTML),
			LiveReload: b.opts.LiveReload,
		})
		if err != nil {
			return nil, err
		}
		if err := write(route.File, html); err != nil {
			return nil, err
		}
		index.Docs = append(index.Docs, searchDoc{
			Location: strings.TrimPrefix(route.URL, "/"),
			Title:    p.title,
			Text:     rendered.Text,
		})
		report.Pages++
	}

	for _, a := range assets {
		data, err := b.docs.Read(a)
		if err != nil {
			return nil, fmt.Errorf("site: read asset %s: %w", a, err)
		}
		if err := write(a, data); err != nil {
			return nil, err
		}
		report.Assets++
	}

	if _, ok := written[stylesheetPath]; !ok {
		css, err := defaultStylesheet()
		if err != nil {
			return nil, err
		}
		if err := write(stylesheetPath, css); err != nil {
			return nil, err
		}
	}

	if _, ok := written["404.html"]; !ok {
		notFound, err := executeLayout(b.layout, pageData{
			SiteName:   b.opts.Name,
			Title:      "Page not found",
			Nav:        nav,
			Content:    template.HTML("<h1>Page not found</h1>"),
			LiveReload: b.opts.LiveReload,
		})
		if err != nil {
			return nil, err
		}
		if err := write("404.html", notFound); err != nil {
			return nil, err
		}
	}

	sort.Slice(index.Docs, func(i, j int) bool { return index.Docs[i].Location < index.Docs[j].Location })
	data, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("site: encode search index: %w", err)
	}
	if err := write(searchIndexPath, data); err != nil {
		return nil, err
	}

	removed, err := prune(out, written)
	if err != nil {
		return nil, err
	}
	report.Removed = removed
	report.Duration = time.Since(start)

	for _, u := range report.Unresolved {
		b.logger.Warn("unresolved link", "page", u.Page, "dest", u.Dest)
	}
	b.logger.Info("site built",
		"site_dir", out.Root(),
		"pages", report.Pages,
		"assets", report.Assets,
		"drafts", report.Drafts,
		"removed", report.Removed,
		"duration", report.Duration,
	)
	return report, nil
}

// prune deletes files under out that the current build did not produce,
// along with the directories that removal leaves empty.
func prune(out storage.Provider, keep map[string]struct{}) (int, error) {
	existing, err := out.Files("")
	if err != nil {
		return 0, fmt.Errorf("site: list output: %w", err)
	}
	removed := 0
	for _, f := range existing {
		if _, ok := keep[f.Path]; ok {
			continue
		}
		if err := out.Delete(f.Path); err != nil {
			return removed, fmt.Errorf("site: remove stale %s: %w", f.Path, err)
		}
		removed++
	}
	return removed, nil
}

// checkDirs rejects a site directory equal to, inside, or containing docs.
func checkDirs(docsRoot, siteDir string) error {
	docsAbs, err := filepath.Abs(docsRoot)
	if err != nil {
		return fmt.Errorf("site: resolve docs_dir: %w", err)
	}
	siteAbs, err := filepath.Abs(siteDir)
	if err != nil {
		return fmt.Errorf("site: resolve site_dir: %w", err)
	}
	if within(docsAbs, siteAbs) || within(siteAbs, docsAbs) {
		return fmt.Errorf("%w: docs=%s site=%s", ErrOverlappingDirs, docsAbs, siteAbs)
	}
	return nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// URLFor returns the URL a docs-relative page is served at.
func (b *Builder) URLFor(src string) string {
	return routeFor(path.Clean(src), b.opts.UseDirectoryURLs, false).URL
}
