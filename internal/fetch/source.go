package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/tidwall/gjson"

	"github.com/starford/marketnotes/internal/apperr"
)

// Credentials are the upstream API keys. Both default to the providers'
// public demo key.
type Credentials struct {
	AlphaVantageKey string `env:"ALPHAVANTAGE_API_KEY" envDefault:"demo"`
	NewsAPIKey      string `env:"NEWSAPI_KEY" envDefault:"demo"`
}

// LoadCredentials reads Credentials from the environment.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := env.Parse(&c); err != nil {
		return Credentials{}, fmt.Errorf("fetch: parse env: %w", err)
	}
	return c, nil
}

// Source describes one upstream dataset.
type Source interface {
	// Name is the CLI identifier, e.g. "stock".
	Name() string
	DefaultQuery() string
	DefaultFile() string
	// NewRequest builds the GET request for query.
	NewRequest(ctx context.Context, query string) (*http.Request, error)
	// Check inspects a 2xx body for an error payload.
	Check(body []byte) error
}

// AlphaVantage fetches TIME_SERIES_DAILY for a ticker symbol.
type AlphaVantage struct {
	BaseURL string
	APIKey  string
}

func (AlphaVantage) Name() string         { return "stock" }
func (AlphaVantage) DefaultQuery() string { return "IBM" }
func (AlphaVantage) DefaultFile() string  { return "stock_data.json" }

func (s AlphaVantage) NewRequest(ctx context.Context, symbol string) (*http.Request, error) {
	return newGET(ctx, s.BaseURL, url.Values{
		"function": {"TIME_SERIES_DAILY"},
		"symbol":   {symbol},
		"apikey":   {s.APIKey},
	})
}

// Check rejects the 200 responses Alpha Vantage uses for bad symbols,
// exhausted quotas and premium-only endpoints.
func (AlphaVantage) Check(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: alphavantage: response is not JSON", apperr.ErrUpstream)
	}
	for _, key := range []string{"Error Message", "Note", "Information"} {
		if v := gjson.GetBytes(body, gjsonKey(key)); v.Exists() {
			return fmt.Errorf("%w: alphavantage: %s", apperr.ErrUpstream, v.String())
		}
	}
	return nil
}

// NewsAPI fetches top headlines for a category.
type NewsAPI struct {
	BaseURL string
	APIKey  string
}

func (NewsAPI) Name() string         { return "news" }
func (NewsAPI) DefaultQuery() string { return "business" }
func (NewsAPI) DefaultFile() string  { return "news.json" }

func (s NewsAPI) NewRequest(ctx context.Context, category string) (*http.Request, error) {
	return newGET(ctx, s.BaseURL, url.Values{
		"category": {category},
		"apiKey":   {s.APIKey},
	})
}

func (NewsAPI) Check(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: newsapi: response is not JSON", apperr.ErrUpstream)
	}
	if gjson.GetBytes(body, "status").String() == "error" {
		code := gjson.GetBytes(body, "code").String()
		msg := gjson.GetBytes(body, "message").String()
		return fmt.Errorf("%w: newsapi: %s: %s", apperr.ErrUpstream, code, msg)
	}
	return nil
}

func newGET(ctx context.Context, base string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse base url: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "marketnotes-fetch")
	return req, nil
}

// gjsonKey escapes characters that gjson treats as path syntax.
func gjsonKey(key string) string {
	return strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`).Replace(key)
}
