package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/marketnotes/internal/apperr"
	"github.com/starford/marketnotes/internal/models"
	"github.com/starford/marketnotes/internal/storage"
)

const stockPayload = `{
  "Meta Data": {"2. Symbol": "IBM"},
  "Time Series (Daily)": {
    "2024-03-01": {"1. open": "185.0", "5. volume": "4200000"}
  }
}`

type memCatalog struct {
	mu   sync.Mutex
	rows []models.Dataset
	err  error
}

func (c *memCatalog) UpsertDataset(d models.Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, d)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func dataDir(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func assertNoFile(t *testing.T, store storage.Provider, name string) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(store.Root(), name)); !os.IsNotExist(err) {
		t.Errorf("%s should not exist after a failed fetch (stat err = %v)", name, err)
	}
}

func TestRun_StockWritesBody(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		_, _ = io.WriteString(w, stockPayload)
	}))
	defer srv.Close()

	store := dataDir(t)
	catalog := &memCatalog{}
	f := New(store, []Source{AlphaVantage{BaseURL: srv.URL, APIKey: "k123"}},
		WithCatalog(catalog), WithLogger(quietLogger()))

	ds, err := f.Run(context.Background(), Request{Source: "stock"})
	if err != nil {
		t.Fatal(err)
	}

	gotQuery := <-queries
	for _, want := range []string{"function=TIME_SERIES_DAILY", "symbol=IBM", "apikey=k123"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %s", gotQuery, want)
		}
	}

	data, err := store.Read("stock_data.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != stockPayload {
		t.Errorf("file content differs from response body")
	}
	if ds.Path != "stock_data.json" || ds.Source != "stock" || ds.Query != "IBM" {
		t.Errorf("dataset = %+v", ds)
	}
	if ds.Size != int64(len(stockPayload)) || ds.StatusCode != http.StatusOK || ds.ID == "" {
		t.Errorf("dataset = %+v", ds)
	}
	if len(catalog.rows) != 1 || catalog.rows[0].ID != ds.ID {
		t.Errorf("catalog rows = %+v", catalog.rows)
	}
}

func TestRun_NewsCustomQueryAndOut(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		_, _ = io.WriteString(w, `{"status":"ok","totalResults":0,"articles":[]}`)
	}))
	defer srv.Close()

	store := dataDir(t)
	f := New(store, []Source{NewsAPI{BaseURL: srv.URL, APIKey: "n1"}}, WithLogger(quietLogger()))

	ds, err := f.Run(context.Background(), Request{Source: "news", Query: "technology", Out: "news/tech.json"})
	if err != nil {
		t.Fatal(err)
	}
	gotQuery := <-queries
	if !strings.Contains(gotQuery, "category=technology") || !strings.Contains(gotQuery, "apiKey=n1") {
		t.Errorf("query = %q", gotQuery)
	}
	if ds.Path != "news/tech.json" {
		t.Errorf("path = %q", ds.Path)
	}
	if _, err := store.Read("news/tech.json"); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		source func(url string) Source
		want   error
	}{
		{"server error", http.StatusInternalServerError, "oops", stock, apperr.ErrUpstream},
		{"not found", http.StatusNotFound, `{}`, stock, apperr.ErrUpstream},
		{"empty body", http.StatusOK, "  \n", stock, apperr.ErrEmptyResponse},
		{"alpha vantage error", http.StatusOK, `{"Error Message": "Invalid API call."}`, stock, apperr.ErrUpstream},
		{"alpha vantage rate limit", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage!"}`, stock, apperr.ErrUpstream},
		{"alpha vantage not json", http.StatusOK, `<html>`, stock, apperr.ErrUpstream},
		{"newsapi error", http.StatusOK, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`, news, apperr.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			store := dataDir(t)
			catalog := &memCatalog{}
			src := tt.source(srv.URL)
			f := New(store, []Source{src}, WithCatalog(catalog), WithLogger(quietLogger()))

			_, err := f.Run(context.Background(), Request{Source: src.Name()})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			assertNoFile(t, store, src.DefaultFile())
			if len(catalog.rows) != 0 {
				t.Errorf("failed fetch recorded in catalog: %+v", catalog.rows)
			}
		})
	}
}

func stock(url string) Source { return AlphaVantage{BaseURL: url, APIKey: "demo"} }
func news(url string) Source  { return NewsAPI{BaseURL: url, APIKey: "demo"} }

func TestRun_FailureKeepsPreviousSnapshot(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, "")
	store := dataDir(t)
	if err := store.Write("stock_data.json", []byte(stockPayload)); err != nil {
		t.Fatal(err)
	}
	f := New(store, []Source{stock(srv.URL)}, WithLogger(quietLogger()))

	if _, err := f.Run(context.Background(), Request{Source: "stock"}); err == nil {
		t.Fatal("expected error")
	}
	data, err := store.Read("stock_data.json")
	if err != nil || string(data) != stockPayload {
		t.Errorf("previous snapshot changed: %q, %v", data, err)
	}
}

func TestRun_TransportError(t *testing.T) {
	srv := serve(t, http.StatusOK, stockPayload)
	url := srv.URL
	srv.Close()

	store := dataDir(t)
	f := New(store, []Source{stock(url)}, WithLogger(quietLogger()))
	if _, err := f.Run(context.Background(), Request{Source: "stock"}); err == nil {
		t.Fatal("expected transport error")
	}
	assertNoFile(t, store, "stock_data.json")
}

func TestRun_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, stockPayload)
	}))
	defer srv.Close()

	store := dataDir(t)
	f := New(store, []Source{stock(srv.URL)},
		WithExecutor(NewExecutor(WithTimeout(20*time.Millisecond))), WithLogger(quietLogger()))
	if _, err := f.Run(context.Background(), Request{Source: "stock"}); err == nil {
		t.Fatal("expected timeout error")
	}
	assertNoFile(t, store, "stock_data.json")
}

func TestRun_CatalogFailureIsNotFatal(t *testing.T) {
	srv := serve(t, http.StatusOK, stockPayload)
	store := dataDir(t)
	catalog := &memCatalog{err: errors.New("database is locked")}
	f := New(store, []Source{stock(srv.URL)}, WithCatalog(catalog), WithLogger(quietLogger()))

	if _, err := f.Run(context.Background(), Request{Source: "stock"}); err != nil {
		t.Fatalf("catalog failure should not fail the fetch: %v", err)
	}
	if _, err := store.Read("stock_data.json"); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRun_WriteFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, stockPayload)
	store := dataDir(t)
	f := New(store, []Source{stock(srv.URL)}, WithLogger(quietLogger()))

	if _, err := f.Run(context.Background(), Request{Source: "stock", Out: "../escape.json"}); err == nil {
		t.Fatal("expected write error for path outside the data dir")
	}
}

func TestRun_UnknownSource(t *testing.T) {
	f := New(dataDir(t), []Source{stock("http://127.0.0.1:0")}, WithLogger(quietLogger()))
	_, err := f.Run(context.Background(), Request{Source: "crypto"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv("ALPHAVANTAGE_API_KEY", "av-key")
	t.Setenv("NEWSAPI_KEY", "unused")
	os.Unsetenv("NEWSAPI_KEY")

	c, err := LoadCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if c.AlphaVantageKey != "av-key" {
		t.Errorf("AlphaVantageKey = %q", c.AlphaVantageKey)
	}
	if c.NewsAPIKey != "demo" {
		t.Errorf("NewsAPIKey = %q, want demo default", c.NewsAPIKey)
	}
}

func TestFetcher_Sources(t *testing.T) {
	f := New(dataDir(t), []Source{news(""), stock("")})
	got := f.Sources()
	if len(got) != 2 || got[0] != "news" || got[1] != "stock" {
		t.Errorf("Sources() = %v", got)
	}
}
