// Package content talks to the hosted content API: it lists pages and writes
// titles and block forests back.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/config"
	"github.com/agentic-research/blocktree/internal/tree"
)

// listFields is the projection requested from the list endpoint.
var listFields = strings.Join([]string{
	"data.title", "name", "id", "lastUpdated", "data.url", "published", "data.blocks",
	"meta.lastPreviewUrl", "data.html", "data.css", "data.jsCode", "data.cssCode",
	"data.inputs", "data.httpRequests", "data.customFonts", "data.state", "data.description",
}, ",")

const maxErrorBody = 64 << 10

// Client is a content API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	writeURL   string
	apiKey     string
	privateKey string
	limit      int
	httpClient *http.Client
	log        *slog.Logger
	group      singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithLogger sets the logger. A nil logger falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client from the resolved configuration.
func NewClient(cfg config.Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	limit := cfg.PageLimit
	if limit <= 0 {
		limit = config.DefaultPageLimit
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		writeURL:   strings.TrimRight(cfg.WriteURL, "/"),
		apiKey:     cfg.APIKey,
		privateKey: cfg.PrivateKey,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListPages fetches every page of the page model. Concurrent callers share
// one request.
func (c *Client) ListPages(ctx context.Context) ([]api.Page, error) {
	v, err, shared := c.group.Do("pages", func() (any, error) {
		return c.listPages(ctx)
	})
	if err != nil {
		return nil, err
	}
	pages := v.([]api.Page)
	if shared {
		pages = append([]api.Page(nil), pages...)
	}
	return pages, nil
}

func (c *Client) listPages(ctx context.Context) ([]api.Page, error) {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("limit", strconv.Itoa(c.limit))
	q.Set("fields", listFields)
	q.Set("cachebust", "true")
	q.Set("model", "page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/page?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	start := time.Now()
	body, err := c.do(req, "list pages")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results *[]api.Page `json:"results"`
	}
	if err := gojson.Unmarshal(body, &resp); err != nil {
		return nil, newAPIError("list pages", http.StatusOK, "Invalid API response format", err)
	}
	if resp.Results == nil {
		return nil, newAPIError("list pages", http.StatusOK, "Invalid API response format", nil)
	}
	c.log.Debug("pages listed", "count", len(*resp.Results), "duration_ms", time.Since(start).Milliseconds())
	return *resp.Results, nil
}

// UpdatePageTitle renames a page.
func (c *Client) UpdatePageTitle(ctx context.Context, pageID, title string) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPatch, pageID, "update title", api.NewTitleUpdate(title))
}

// UpdatePageBlocks replaces a page's forest. The forest is sent as given;
// auxiliary fields come from data, with missing ones defaulted.
func (c *Client) UpdatePageBlocks(ctx context.Context, pageID string, forest tree.Forest, data api.PageData) (json.RawMessage, error) {
	return c.write(ctx, http.MethodPut, pageID, "update blocks", api.NewBlocksUpdate(forest, data))
}

// SaveBlocks lets the client act as a session saver.
func (c *Client) SaveBlocks(ctx context.Context, page api.Page, forest tree.Forest) (json.RawMessage, error) {
	return c.UpdatePageBlocks(ctx, page.ID, forest, page.Data)
}

func (c *Client) write(ctx context.Context, method, pageID, op string, payload any) (json.RawMessage, error) {
	body, err := gojson.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", op, err)
	}
	u := c.writeURL + "/page/" + url.PathEscape(pageID)
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.privateKey)

	start := time.Now()
	resp, err := c.do(req, op)
	if err != nil {
		c.log.Warn("content write failed", "op", op, "page_id", pageID, "error", err)
		return nil, err
	}
	c.log.Debug("content write", "op", op, "page_id", pageID, "bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds())
	if len(bytes.TrimSpace(resp)) == 0 {
		return nil, nil
	}
	return json.RawMessage(resp), nil
}

// do sends req and returns the body of a 2xx response. Everything else
// becomes an *APIError.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newAPIError(op, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var msg struct {
			Message string `json:"message"`
		}
		_ = gojson.Unmarshal(raw, &msg)
		return nil, newAPIError(op, resp.StatusCode, msg.Message,
			fmt.Errorf("%s: status %d", op, resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAPIError(op, resp.StatusCode, "", fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
