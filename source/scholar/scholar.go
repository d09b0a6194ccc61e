// Package scholar searches Google Scholar through the SerpAPI HTTP service.
//
// The adapter serializes outbound requests through a shared rate limiter,
// retries transient failures with jittered exponential backoff, paginates
// result pages, and enforces an optional per-run request budget.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/source"
)

// SourceName identifies this adapter in strategies and results.
const SourceName = "serpapi_scholar"

const (
	defaultBaseURL    = "https://serpapi.com/search"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRPS        = 1.0
	pageSize          = 20
	maxBackoff        = 16 * time.Second
)

// Config controls the adapter's connection and pacing behavior.
type Config struct {
	// APIKey is the SerpAPI key. Required.
	APIKey string
	// BaseURL overrides the SerpAPI endpoint. Used by tests.
	BaseURL string
	// HTTPClient overrides the transport. Defaults to a 30s-timeout client.
	HTTPClient *http.Client
	// RequestsPerSecond caps outbound request rate. Defaults to 1.
	RequestsPerSecond float64
	// MaxRetries bounds retry attempts per page fetch. Defaults to 3.
	MaxRetries int
	// MaxCalls caps total HTTP requests per client lifetime. 0 means no cap.
	MaxCalls int
}

// Client is a source.Source backed by SerpAPI's Google Scholar engine.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int

	limiter *rateLimiter

	mu       sync.Mutex
	calls    int
	maxCalls int
}

// New creates a Scholar client. Missing config fields take defaults.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("scholar: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		limiter:    &rateLimiter{minInterval: time.Duration(float64(time.Second) / rps)},
		maxCalls:   cfg.MaxCalls,
	}, nil
}

// Name implements source.Source.
func (c *Client) Name() string { return SourceName }

// CallCount reports how many HTTP requests this client has issued.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Search implements source.Source. It paginates until MaxResults papers are
// collected or the provider runs out. A failure after at least one page has
// been collected returns the partial results instead of the error.
func (c *Client) Search(ctx context.Context, query string, opts source.SearchOptions) ([]paper.RawPaper, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = pageSize
	}

	var papers []paper.RawPaper
	start := 0
	for len(papers) < maxResults {
		num := pageSize
		if remaining := maxResults - len(papers); remaining < num {
			num = remaining
		}

		resp, err := c.fetchPage(ctx, c.pageParams(query, opts, start, num))
		if err != nil {
			if len(papers) > 0 && ctx.Err() == nil {
				return papers, nil
			}
			return nil, err
		}
		if len(resp.OrganicResults) == 0 {
			break
		}

		for _, raw := range resp.OrganicResults {
			p, ok := parseResult(raw)
			if !ok {
				continue
			}
			papers = append(papers, p)
			if len(papers) >= maxResults {
				break
			}
		}

		if len(resp.OrganicResults) < num {
			break
		}
		start += len(resp.OrganicResults)
	}
	return papers, nil
}

// SearchAdvanced implements source.Source. The strategy's result budget is
// split evenly across its queries. Transient per-query failures drop that
// query's results; permanent auth failures abort the whole call. The combined
// results are deduplicated by provider result id, then URL, then title+year.
func (c *Client) SearchAdvanced(ctx context.Context, strategy paper.SearchStrategy) ([]paper.RawPaper, error) {
	if len(strategy.Queries) == 0 {
		return nil, nil
	}

	maxResults := strategy.Filters.MaxResults
	if maxResults <= 0 {
		maxResults = paper.DefaultConstraints().MaxResults
	}
	perQuery := maxResults / len(strategy.Queries)
	if perQuery < 1 {
		perQuery = 1
	}

	opts := source.SearchOptions{
		MaxResults: perQuery,
		YearFrom:   strategy.Filters.YearFrom,
		YearTo:     strategy.Filters.YearTo,
		Language:   strategy.Filters.Language,
	}

	var combined []paper.RawPaper
	for _, q := range strategy.Queries {
		queryText := q.BooleanQuery
		if queryText == "" {
			queryText = strings.Join(q.Keywords, " ")
		}
		if queryText == "" {
			continue
		}

		results, err := c.Search(ctx, queryText, opts)
		if err != nil {
			var perm *source.PermanentError
			if errors.As(err, &perm) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		combined = append(combined, results...)
	}
	return dedupeResults(combined), nil
}

func (c *Client) pageParams(query string, opts source.SearchOptions, start, num int) url.Values {
	params := url.Values{}
	params.Set("engine", "google_scholar")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", strconv.Itoa(num))
	params.Set("start", strconv.Itoa(start))
	if opts.YearFrom > 0 {
		params.Set("as_ylo", strconv.Itoa(opts.YearFrom))
	}
	if opts.YearTo > 0 {
		params.Set("as_yhi", strconv.Itoa(opts.YearTo))
	}
	if opts.Language != "" {
		params.Set("hl", opts.Language)
	}
	return params
}

type searchResponse struct {
	Error          string            `json:"error"`
	OrganicResults []json.RawMessage `json:"organic_results"`
}

// fetchPage issues one API request with retry. HTTP 429/500/503 and transport
// timeouts are retried with jittered exponential backoff; 401/403 fail
// immediately as permanent.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*searchResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt-1); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}
		if err := c.consumeBudget(); err != nil {
			return nil, err
		}

		resp, retryable, err := c.doRequest(ctx, params)
		if err == nil {
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, &source.RetryableError{
		Message: fmt.Sprintf("request failed after %d retries: %v", c.maxRetries, lastErr),
		Err:     lastErr,
	}
}

// doRequest performs a single HTTP round trip. The bool reports whether the
// failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, params url.Values) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, false, &source.PermanentError{
			Message: fmt.Sprintf("authentication failed (HTTP %d): check the SerpAPI key", httpResp.StatusCode),
		}
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return nil, true, fmt.Errorf("HTTP %d from provider", httpResp.StatusCode)
	default:
		return nil, false, &source.APIError{
			Message: fmt.Sprintf("unexpected HTTP status %d", httpResp.StatusCode),
		}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, false, &source.APIError{Message: "malformed response: " + err.Error()}
	}
	if resp.Error != "" {
		return nil, false, &source.APIError{Message: resp.Error}
	}
	return &resp, false, nil
}

func (c *Client) consumeBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxCalls > 0 && c.calls >= c.maxCalls {
		return &source.CallLimitError{Limit: c.maxCalls}
	}
	c.calls++
	return nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	backoff += time.Duration(rand.Int63n(int64(time.Second)))

	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rateLimiter spaces requests at least minInterval apart. The mutex is held
// while waiting so concurrent callers queue up rather than burst.
type rateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func (r *rateLimiter) wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() {
		if wait := r.minInterval - time.Since(r.last); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	r.last = time.Now()
	return nil
}
