// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/nbforge/internal/httputil"
	"github.com/pdiddy/nbforge/pkg/types"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTP serves notebook reads and writes against http(s) endpoints: GET on
// read with a JSON accept header, PUT on write. 429 responses are retried
// with backoff.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// NewHTTP builds an HTTP handler from the shared HTTP settings.
func NewHTTP(cfg types.HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTP{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
	}
}

func (h *HTTP) Read(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (h *HTTP) Write(ctx context.Context, path string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("PUT %s: %s", path, resp.Status)
	}
	return nil
}

func (h *HTTP) Pretty(path string) string { return path }
