// Package apiclient is the typed client of the Paylive REST API used by the
// checkout flow.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paylive-be/internal/logger"
	"paylive-be/internal/metrics"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// TokenSource returns the current Clerk session token.
type TokenSource func(ctx context.Context) (string, error)

type Config struct {
	BaseURL string
	// Timeout bounds every call, on top of the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
	Token      TokenSource
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	token      TokenSource
}

var ErrNoToken = errors.New("authentication required")

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("apiclient: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:    base,
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		token:      cfg.Token,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

type call struct {
	method string
	path   string
	query  url.Values
	auth   bool
	in     any
	out    any
}

func (c *Client) do(ctx context.Context, cl call) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := logger.FromCtx(ctx).With(
		zap.String("client", "paylive-api"),
		zap.String("http_method", cl.method),
		zap.String("path", cl.path),
	)

	var body io.Reader
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := logger.RequestIDFrom(ctx); rid != "" {
		req.Header.Set(logger.RequestIDHeader, rid)
	}

	if cl.auth {
		if c.token == nil {
			return ErrNoToken
		}
		tok, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoToken, err)
		}
		if tok == "" {
			return ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	metrics.Default.Observe("api_request", timer.Duration())
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp.StatusCode, raw)
		log.Debug("non-success status", zap.Int("status", resp.StatusCode), zap.String("error", apiErr.Message))
		return apiErr
	}

	if cl.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, cl.out); err != nil {
		log.Error("failed decoding response", zap.Error(err))
		return fmt.Errorf("failed decoding response: %w", err)
	}
	return nil
}
