// Package vssapi is a typed client for the VSS platform scripts endpoints.
//
// Every call is a single attempt: there is no retry and no backoff.
package vssapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/vssflow/internal/models"
)

// Endpoints.
const (
	EndpointScripts   = "/scripts"
	endpointScriptRun = "/scripts/run/"
)

// ScriptRunEndpoint returns the run endpoint for script id.
func ScriptRunEndpoint(id string) string {
	return endpointScriptRun + url.PathEscape(id)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the initial bearer token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithLogger sets the logger used for failed requests.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client talks to the VSS API rooted at a base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	token   string
}

// New creates a client for baseURL (e.g. "https://vss.example.com/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListScripts fetches all saved scripts.
func (c *Client) ListScripts(ctx context.Context) ([]models.Script, error) {
	var out []models.Script
	if err := c.request(ctx, http.MethodGet, EndpointScripts, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Script{}
	}
	return out, nil
}

// SaveScript creates or updates a script and returns the stored record.
func (c *Client) SaveScript(ctx context.Context, s models.Script) (*models.Script, error) {
	var out models.Script
	if err := c.request(ctx, http.MethodPost, EndpointScripts, s, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out = s
	}
	return &out, nil
}

// RunScript triggers remote execution of script id.
func (c *Client) RunScript(ctx context.Context, id string) error {
	return c.request(ctx, http.MethodPost, ScriptRunEndpoint(id), nil, nil)
}

func (c *Client) request(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vssapi: encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("vssapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("vss api request failed", slog.String("endpoint", endpoint), slog.String("error", err.Error()))
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	var env models.Envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
		}
		c.logger.Error("vss api request rejected",
			slog.String("endpoint", endpoint),
			slog.Int("status", resp.StatusCode),
			slog.String("error", apiErr.Error()))
		return apiErr
	}
	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("vssapi: decode %s response: %w", endpoint, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("vssapi: decode %s data: %w", endpoint, err)
	}
	return nil
}
