package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

// ClientConfig tunes the HTTP transport used for upstream APIs.
type ClientConfig struct {
	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration

	DialTimeout     time.Duration
	TLSHandshake    time.Duration
	ResponseHeader  time.Duration
	IdleConnTimeout time.Duration
}

// DefaultClientConfig returns conservative timeouts for one-shot fetches.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         30 * time.Second,
		DialTimeout:     5 * time.Second,
		TLSHandshake:    5 * time.Second,
		ResponseHeader:  20 * time.Second,
		IdleConnTimeout: 30 * time.Second,
	}
}

// NewHTTPClient builds an *http.Client from cfg.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
		IdleConnTimeout:       cfg.IdleConnTimeout,
	}
	return &http.Client{Transport: tr, Timeout: cfg.Timeout}
}

// Response is a fully read upstream response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
}

// Executor performs a single request and reads the whole body.
type Executor struct {
	client  *http.Client
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithTimeout bounds each request with a context deadline.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.client = c }
}

// NewExecutor returns an Executor using DefaultClientConfig unless overridden.
func NewExecutor(opts ...ExecutorOption) *Executor {
	cfg := DefaultClientConfig()
	e := &Executor{client: NewHTTPClient(cfg), timeout: cfg.Timeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do sends req and returns the response with its body read.
func (e *Executor) Do(ctx context.Context, req *http.Request) (Response, error) {
	start := time.Now()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Do(req.WithContext(ctx))
	if err != nil {
		return Response{Duration: time.Since(start)}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{Status: resp.StatusCode, Duration: time.Since(start)}, err
	}
	return Response{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		Duration: time.Since(start),
	}, nil
}
