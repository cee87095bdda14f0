// Package transport executes scheduler requests over HTTP.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tapedeck/internal/app/scheduler"
)

// Config represents HTTP transport configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// HTTP runs each request on its own goroutine and reports the outcome exactly once.
type HTTP struct {
	baseURL    string
	httpClient *http.Client

	ctx    context.Context
	cancel context.CancelFunc
}

var _ scheduler.Transport = (*HTTP)(nil)

// New creates a new HTTP transport.
func New(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("transport base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HTTP{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Execute starts req and calls done once it finishes.
func (t *HTTP) Execute(req scheduler.Request, done scheduler.CompletionFunc) {
	go func() {
		done(t.do(req))
	}()
}

// Close cancels in-flight requests. Their completions still fire with an error.
func (t *HTTP) Close() {
	t.cancel()
}

// URL returns the absolute URL for req.
func (t *HTTP) URL(req scheduler.Request) string {
	u := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	return u
}

func (t *HTTP) do(req scheduler.Request) scheduler.Response {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(t.ctx, method, t.URL(req), nil)
	if err != nil {
		return scheduler.Response{Err: errors.Wrap(err, "failed to create request")}
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		zlog.Debug().Msgf("transport: %s %s failed: %v", method, req.Path, err)
		return scheduler.Response{Err: errors.Wrap(err, "failed to send request")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scheduler.Response{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response body")}
	}

	return scheduler.Response{StatusCode: resp.StatusCode, Body: body}
}
