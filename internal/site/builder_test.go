package site

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/marketnotes/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newDocs(t *testing.T, files map[string]string) *storage.FS {
	t.Helper()
	docs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := docs.Write(p, []byte(content)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	return docs
}

func newBuilder(t *testing.T, docs storage.Provider, opts Options) *Builder {
	t.Helper()
	if opts.SiteDir == "" {
		opts.SiteDir = filepath.Join(t.TempDir(), "site")
	}
	if opts.Name == "" {
		opts.Name = "Market Notes"
	}
	b, err := NewBuilder(opts, docs, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func readSite(t *testing.T, b *Builder, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(b.SiteDir(), filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestBuild_RendersPages(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md":         "# Market Notes\n\nStart with [IBM](stocks/ibm.md).\n",
		"stocks/ibm.md":    "---\ntitle: IBM Corp\n---\n## Valuation\n\nBack to [[index|home]].\n",
		"stocks/chart.png": "png-bytes",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: true})

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Pages != 2 || report.Assets != 1 {
		t.Errorf("report = %+v, want 2 pages and 1 asset", report)
	}

	home := readSite(t, b, "index.html")
	if !strings.Contains(home, `href="/stocks/ibm/"`) {
		t.Errorf("home page link not rewritten:\n%s", home)
	}
	if !strings.Contains(home, "<title>Market Notes - Market Notes</title>") {
		t.Errorf("home page title missing:\n%s", home)
	}

	ibm := readSite(t, b, "stocks/ibm/index.html")
	if !strings.Contains(ibm, "IBM Corp") {
		t.Errorf("frontmatter title missing from page")
	}
	if strings.Contains(ibm, "title: IBM Corp") {
		t.Errorf("frontmatter leaked into rendered page")
	}
	if !strings.Contains(ibm, `<a href="#valuation">Valuation</a>`) {
		t.Errorf("table of contents missing:\n%s", ibm)
	}
	if strings.Contains(ibm, "EventSource") {
		t.Errorf("live reload injected without LiveReload")
	}

	if got := readSite(t, b, "stocks/chart.png"); got != "png-bytes" {
		t.Errorf("asset = %q", got)
	}
	if css := readSite(t, b, stylesheetPath); !strings.Contains(css, ".site-nav") {
		t.Errorf("default stylesheet not written")
	}
	if nf := readSite(t, b, "404.html"); !strings.Contains(nf, "Page not found") {
		t.Errorf("404 page missing")
	}
}

func TestBuild_SkipsDrafts(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md": "# Home\n",
		"wip.md":   "---\ndraft: true\n---\n# Work in progress\n",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: true})

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Drafts != 1 || report.Pages != 1 {
		t.Errorf("report = %+v, want 1 page and 1 draft", report)
	}
	if _, err := os.Stat(filepath.Join(b.SiteDir(), "wip", "index.html")); !os.IsNotExist(err) {
		t.Errorf("draft page was rendered")
	}
}

func TestBuild_SearchIndex(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md":    "# Home\n\nWelcome.\n",
		"news/fed.md": "# Fed minutes\n\nRates held steady.\n",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: true})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	var idx searchIndex
	if err := json.Unmarshal([]byte(readSite(t, b, searchIndexPath)), &idx); err != nil {
		t.Fatal(err)
	}
	if len(idx.Config.Lang) != 1 || idx.Config.Lang[0] != "en" {
		t.Errorf("config = %+v", idx.Config)
	}
	if len(idx.Docs) != 2 {
		t.Fatalf("docs = %+v, want 2", idx.Docs)
	}
	if idx.Docs[0].Location != "" || idx.Docs[1].Location != "news/fed/" {
		t.Errorf("locations = %q, %q", idx.Docs[0].Location, idx.Docs[1].Location)
	}
	if !strings.Contains(idx.Docs[1].Text, "Rates held steady.") {
		t.Errorf("text = %q", idx.Docs[1].Text)
	}
}

func TestBuild_PlainURLs(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md":      "[IBM](stocks/ibm.md)",
		"stocks/ibm.md": "# IBM\n",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: false})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	readSite(t, b, "stocks/ibm.html")
	if home := readSite(t, b, "index.html"); !strings.Contains(home, `href="/stocks/ibm.html"`) {
		t.Errorf("link not rewritten to .html URL:\n%s", home)
	}
}

func TestBuild_ReportsUnresolvedLinks(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md": "[gone](missing.md)",
	})
	b := newBuilder(t, docs, Options{})

	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Unresolved) != 1 || report.Unresolved[0].Page != "index.md" {
		t.Errorf("unresolved = %+v", report.Unresolved)
	}
}

func TestBuild_PrunesStaleFiles(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md": "# Home\n",
		"old.md":   "# Old\n",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: true})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	readSite(t, b, "old/index.html")

	if err := docs.Delete("old.md"); err != nil {
		t.Fatal(err)
	}
	report, err := b.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 {
		t.Errorf("removed = %d, want 1", report.Removed)
	}
	if _, err := os.Stat(filepath.Join(b.SiteDir(), "old", "index.html")); !os.IsNotExist(err) {
		t.Errorf("stale page still present")
	}
	if _, err := os.Stat(filepath.Join(b.SiteDir(), "old")); !os.IsNotExist(err) {
		t.Errorf("stale page directory still present")
	}
}

func TestBuild_DeletedPageServes404(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md":         "# Home\n",
		"stocks/ibm.md":    "# IBM\n",
		"stocks/nvidia.md": "# NVIDIA\n",
	})
	b := newBuilder(t, docs, Options{UseDirectoryURLs: true})
	h := FileHandler(b.SiteDir())
	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w := get("/stocks/ibm/"); w.Code != http.StatusOK {
		t.Fatalf("GET /stocks/ibm/ before delete = %d", w.Code)
	}

	if err := docs.Delete("stocks/ibm.md"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := get("/stocks/ibm/")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /stocks/ibm/ after delete = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Page not found") {
		t.Errorf("body = %q, want the site 404 page", w.Body.String())
	}
	if w := get("/stocks/nvidia/"); w.Code != http.StatusOK {
		t.Errorf("GET /stocks/nvidia/ = %d, sibling page must survive", w.Code)
	}
}

func TestBuild_Clean(t *testing.T) {
	docs := newDocs(t, map[string]string{"index.md": "# Home\n"})
	siteDir := filepath.Join(t.TempDir(), "site")
	if err := os.MkdirAll(filepath.Join(siteDir, ".cache"), 0o755); err != nil {
		t.Fatal(err)
	}
	b := newBuilder(t, docs, Options{SiteDir: siteDir, Clean: true})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(siteDir, ".cache")); !os.IsNotExist(err) {
		t.Errorf("clean build left hidden directory behind")
	}
}

func TestBuild_LiveReload(t *testing.T) {
	docs := newDocs(t, map[string]string{"index.md": "# Home\n"})
	b := newBuilder(t, docs, Options{LiveReload: true})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	home := readSite(t, b, "index.html")
	if !strings.Contains(home, `new EventSource("/api/events")`) {
		t.Errorf("live reload script missing:\n%s", home)
	}
}

func TestBuild_ExplicitNav(t *testing.T) {
	docs := newDocs(t, map[string]string{
		"index.md":      "# Home\n",
		"stocks/ibm.md": "# IBM\n",
	})
	b := newBuilder(t, docs, Options{
		UseDirectoryURLs: true,
		Nav: []NavItem{
			{Title: "Start", Path: "index.md"},
			{Title: "Stocks", Children: []NavItem{{Title: "IBM", Path: "stocks/ibm.md"}}},
			{Title: "Alpha Vantage", Path: "https://www.alphavantage.co"},
		},
	})

	if _, err := b.Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	ibm := readSite(t, b, "stocks/ibm/index.html")
	for _, want := range []string{
		`<a href="/">Start</a>`,
		`<span>Stocks</span>`,
		`<li class="active"><a href="/stocks/ibm/">IBM</a>`,
		`href="https://www.alphavantage.co"`,
	} {
		if !strings.Contains(ibm, want) {
			t.Errorf("nav missing %s:\n%s", want, ibm)
		}
	}
}

func TestBuild_ContextCanceled(t *testing.T) {
	docs := newDocs(t, map[string]string{"index.md": "# Home\n"})
	b := newBuilder(t, docs, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewBuilder_RejectsOverlappingDirs(t *testing.T) {
	docs := newDocs(t, nil)

	for _, siteDir := range []string{
		docs.Root(),
		filepath.Join(docs.Root(), "site"),
		filepath.Dir(docs.Root()),
	} {
		_, err := NewBuilder(Options{SiteDir: siteDir}, docs, quietLogger())
		if !errors.Is(err, ErrOverlappingDirs) {
			t.Errorf("site_dir %s: err = %v, want ErrOverlappingDirs", siteDir, err)
		}
	}
}

func TestAutoNav(t *testing.T) {
	routes := testRoutes(true, "index.md", "stocks/index.md", "stocks/ibm.md", "about.md")
	titles := map[string]string{
		"index.md":        "Home",
		"stocks/index.md": "Stocks",
		"stocks/ibm.md":   "IBM",
		"about.md":        "About",
	}

	nav := autoNav(routes, titles)
	if len(nav) != 3 {
		t.Fatalf("nav = %+v, want 3 entries", nav)
	}
	if nav[0].Title != "Home" || nav[0].URL != "/" {
		t.Errorf("nav[0] = %+v, want home first", nav[0])
	}
	if nav[1].Title != "About" {
		t.Errorf("nav[1] = %+v, want About", nav[1])
	}
	section := nav[2]
	if section.Title != "Stocks" || section.URL != "/stocks/" {
		t.Errorf("section = %+v", section)
	}
	if len(section.Children) != 1 || section.Children[0].URL != "/stocks/ibm/" {
		t.Errorf("section children = %+v", section.Children)
	}
}
