// Package roles fetches the role catalog used on the role targeting screen.
package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Defaults for the catalog client.
const (
	DefaultTimeout   = 15 * time.Second
	DefaultCacheSize = 256
	DefaultCacheTTL  = 5 * time.Minute
)

// Role is one entry of the role catalog.
type Role struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category,omitempty"`
	Description  string   `json:"description,omitempty"`
	Level        string   `json:"level,omitempty"`
	Location     string   `json:"location,omitempty"`
	Experience   string   `json:"experience,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// FetchError is a failed catalog request. Callers show it with a retry option.
type FetchError struct {
	Query      string
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("role catalog fetch failed (query %q): %s: %v", e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("role catalog fetch failed (query %q): %s", e.Query, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

type cacheEntry struct {
	roles   []Role
	fetched time.Time
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	CacheSize  int
	CacheTTL   time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Client searches the role catalog and caches results per query.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *lru.Cache[string, cacheEntry]
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a catalog client for baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("roles base URL is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cache, err := lru.New[string, cacheEntry](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: opts.HTTPClient,
		cache:      cache,
		ttl:        opts.CacheTTL,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// Search returns roles matching the free-text query. An empty query lists
// the whole catalog.
func (c *Client) Search(ctx context.Context, query string) ([]Role, error) {
	query = strings.TrimSpace(query)
	key := strings.ToLower(query)
	if entry, ok := c.cache.Get(key); ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.roles, nil
	}

	roles, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cacheEntry{roles: roles, fetched: c.now()})
	c.logger.Debug("fetched roles", zap.String("query", query), zap.Int("count", len(roles)))
	return roles, nil
}

// Purge drops all cached results.
func (c *Client) Purge() {
	c.cache.Purge()
}

func (c *Client) fetch(ctx context.Context, query string) ([]Role, error) {
	u := c.baseURL + "/roles"
	if query != "" {
		u += "?" + url.Values{"search": {query}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Query: query, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Query: query, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Query:      query,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var roles []Role
	if err := json.NewDecoder(resp.Body).Decode(&roles); err != nil {
		return nil, &FetchError{Query: query, StatusCode: resp.StatusCode, Message: "invalid JSON response", Cause: err}
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}
