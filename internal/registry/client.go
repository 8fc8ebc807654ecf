package registry

import (
	"context"
	"encoding/json"
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

// Client proxies lookups to one business registry API.
type Client struct {
	name       string
	baseURL    string
	keyHeader  string
	keyPrefix  string
	apiKey     string
	httpClient *http.Client
}

func NewInseeClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return newClient("insee", apiKey, baseURL, "X-INSEE-Api-Key-Integration", "", timeout)
}

func NewBCEClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return newClient("bce", apiKey, baseURL, "Authorization", "Bearer ", timeout)
}

func newClient(name, apiKey, baseURL, keyHeader, keyPrefix string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyHeader:  keyHeader,
		keyPrefix:  keyPrefix,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Get returns the upstream JSON document at path. Non-2xx answers become
// *UpstreamError carrying the upstream status.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	log := logger.FromCtx(ctx).With(zap.String("registry", c.name), zap.String("path", path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.keyHeader, c.keyPrefix+c.apiKey)
	req.Header.Set("Accept", "application/json")

	timer := metrics.StartTimer()
	resp, err := c.httpClient.Do(req)
	metrics.Default.Observe(c.name+"_request", timer.Duration())
	if err != nil {
		log.Error("registry request failed", zap.Error(err))
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: fmt.Sprintf("%s injoignable", c.name)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("registry returned non-success status", zap.Int("status", resp.StatusCode))
		return nil, &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(body, resp.StatusCode)}
	}

	if !json.Valid(body) {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "réponse invalide du registre"}
	}
	return body, nil
}

// upstreamMessage extracts header.message (INSEE) or message/error fields.
func upstreamMessage(body []byte, status int) string {
	var parsed struct {
		Header struct {
			Message string `json:"message"`
		} `json:"header"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		for _, m := range []string{parsed.Header.Message, parsed.Message, parsed.Error} {
			if m != "" {
				return m
			}
		}
	}
	return http.StatusText(status)
}

func escape(s string) string {
	return url.PathEscape(s)
}
