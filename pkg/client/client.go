package client

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

	"github.com/loykin/srvctl/internal/manager"
	"github.com/loykin/srvctl/internal/server"
)

// Client talks to a running srvctl daemon over its HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8080/api",
		Timeout: 30 * time.Second,
	}
}

func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable.
func (c *Client) IsReachable(ctx context.Context) bool {
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		c.logger.Debug("daemon unreachable", "url", c.baseURL, "error", err)
		return false
	}
	return true
}

func (c *Client) List(ctx context.Context) ([]Server, error) {
	var out []Server
	err := c.do(ctx, http.MethodGet, "/servers", nil, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, name string) (Server, error) {
	var out Server
	err := c.do(ctx, http.MethodGet, serverPath(name), nil, &out)
	return out, err
}

func (c *Client) Detail(ctx context.Context, name string) (Detail, error) {
	var out Detail
	err := c.do(ctx, http.MethodGet, serverPath(name)+"/detail", nil, &out)
	return out, err
}

func (c *Client) Add(ctx context.Context, s Server) (Server, error) {
	var out Server
	err := c.do(ctx, http.MethodPost, "/servers", s, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, name string, p Patch) (Server, error) {
	var out Server
	err := c.do(ctx, http.MethodPatch, serverPath(name), p, &out)
	return out, err
}

func (c *Client) Remove(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, serverPath(name), nil, nil)
}

func (c *Client) Start(ctx context.Context, name string) (Server, error) {
	return c.lifecycle(ctx, name, "start")
}

func (c *Client) Stop(ctx context.Context, name string) (Server, error) {
	return c.lifecycle(ctx, name, "stop")
}

func (c *Client) Restart(ctx context.Context, name string) (Server, error) {
	return c.lifecycle(ctx, name, "restart")
}

// StartAll returns per-server results; failed entries carry an *APIError.
func (c *Client) StartAll(ctx context.Context) ([]manager.Result, error) {
	return c.bulk(ctx, "/start-all")
}

// StopAll returns per-server results; failed entries carry an *APIError.
func (c *Client) StopAll(ctx context.Context) ([]manager.Result, error) {
	return c.bulk(ctx, "/stop-all")
}

func (c *Client) Ports(ctx context.Context) ([]PortUsage, error) {
	var out []PortUsage
	err := c.do(ctx, http.MethodGet, "/ports", nil, &out)
	return out, err
}

// Reconcile asks the daemon to mark dead servers stopped and returns their names.
func (c *Client) Reconcile(ctx context.Context) ([]string, error) {
	var out struct {
		Lost []string `json:"lost"`
	}
	err := c.do(ctx, http.MethodPost, "/reconcile", nil, &out)
	return out.Lost, err
}

func (c *Client) lifecycle(ctx context.Context, name, op string) (Server, error) {
	var out Server
	err := c.do(ctx, http.MethodPost, serverPath(name)+"/"+op, nil, &out)
	return out, err
}

func (c *Client) bulk(ctx context.Context, path string) ([]manager.Result, error) {
	var raw []BulkResult
	if err := c.do(ctx, http.MethodPost, path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]manager.Result, 0, len(raw))
	for _, r := range raw {
		res := manager.Result{Name: r.Name}
		if !r.OK {
			res.Err = &APIError{Status: http.StatusOK, Code: r.Code, Message: r.Error}
		}
		out = append(out, res)
	}
	return out, nil
}

func serverPath(name string) string { return "/servers/" + url.PathEscape(name) }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var er server.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return &APIError{Status: resp.StatusCode, Code: er.Code, Message: er.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
