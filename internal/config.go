package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marketnotes/internal/fetch"
	"github.com/starford/marketnotes/internal/site"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Site   SiteConfig        `yaml:"site"`
	Data   DataConfig        `yaml:"data"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Fetch  FetchConfig       `yaml:"fetch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.App),
		validation.Field(&c.Site),
		validation.Field(&c.Data),
		validation.Field(&c.SQLite),
		validation.Field(&c.Fetch),
	)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the preview server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c HTTPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig describes the docs tree and the generated site.
type SiteConfig struct {
	Name             string               `yaml:"name"`
	DocsDir          string               `yaml:"docs_dir"`
	SiteDir          string               `yaml:"site_dir"`
	UseDirectoryURLs bool                 `yaml:"use_directory_urls"`
	Nav              []site.NavItem       `yaml:"nav"`
	Markdown         site.MarkdownOptions `yaml:"markdown"`
}

// Validate validates the site configuration.
func (c SiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.DocsDir, validation.Required),
		validation.Field(&c.SiteDir, validation.Required, validation.By(func(any) error {
			if filepath.Clean(c.SiteDir) == filepath.Clean(c.DocsDir) {
				return errors.New("must differ from docs_dir")
			}
			return nil
		})),
		validation.Field(&c.Nav, validation.By(validateNav)),
	)
}

// Options converts the section into builder options.
func (c *SiteConfig) Options(clean, liveReload bool) site.Options {
	return site.Options{
		Name:             c.Name,
		DocsDir:          c.DocsDir,
		SiteDir:          c.SiteDir,
		UseDirectoryURLs: c.UseDirectoryURLs,
		Nav:              c.Nav,
		Markdown:         c.Markdown,
		Clean:            clean,
		LiveReload:       liveReload,
	}
}

func validateNav(v any) error {
	items, _ := v.([]site.NavItem)
	for i, it := range items {
		if it.Title == "" && it.Path == "" {
			return fmt.Errorf("entry %d: title or path is required", i)
		}
		if it.Path == "" && len(it.Children) == 0 {
			return fmt.Errorf("entry %q: path or children is required", it.Title)
		}
		if err := validateNav(it.Children); err != nil {
			return fmt.Errorf("entry %q: %w", it.Title, err)
		}
	}
	return nil
}

// DataConfig holds the directory fetched snapshots are written to.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the data configuration.
func (c DataConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c SQLiteConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FetchConfig configures the upstream data APIs.
type FetchConfig struct {
	Timeout      time.Duration  `yaml:"timeout"`
	AlphaVantage EndpointConfig `yaml:"alphavantage"`
	NewsAPI      EndpointConfig `yaml:"newsapi"`
}

// Validate validates the fetch configuration.
func (c FetchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.AlphaVantage),
		validation.Field(&c.NewsAPI),
	)
}

// ClientConfig returns transport settings where Timeout governs both the
// whole request and the wait for response headers.
func (c *FetchConfig) ClientConfig() fetch.ClientConfig {
	cc := fetch.DefaultClientConfig()
	cc.Timeout = c.Timeout
	cc.ResponseHeader = c.Timeout
	return cc
}

// Executor returns an HTTP executor whose per-request deadline is Timeout.
func (c *FetchConfig) Executor() *fetch.Executor {
	return fetch.NewExecutor(
		fetch.WithHTTPClient(fetch.NewHTTPClient(c.ClientConfig())),
		fetch.WithTimeout(c.Timeout),
	)
}

// Sources returns the configured data sources.
func (c *FetchConfig) Sources(creds fetch.Credentials) []fetch.Source {
	return []fetch.Source{
		fetch.AlphaVantage{BaseURL: c.AlphaVantage.BaseURL, APIKey: creds.AlphaVantageKey},
		fetch.NewsAPI{BaseURL: c.NewsAPI.BaseURL, APIKey: creds.NewsAPIKey},
	}
}

// EndpointConfig holds one upstream API endpoint.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Validate validates the endpoint configuration.
func (c EndpointConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, validation.By(httpURL)),
	)
}

func httpURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		Site: SiteConfig{
			Name:             "Market Notes",
			DocsDir:          "docs",
			SiteDir:          "site",
			UseDirectoryURLs: true,
		},
		Data: DataConfig{
			Dir: "data/raw",
		},
		SQLite: SQLiteConfig{
			Path: "./marketnotes.db",
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
			AlphaVantage: EndpointConfig{
				BaseURL: "https://www.alphavantage.co/query",
			},
			NewsAPI: EndpointConfig{
				BaseURL: "https://newsapi.org/v2/top-headlines",
			},
		},
	}
}
