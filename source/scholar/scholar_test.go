package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/source"
)

// resultsPage builds a SerpAPI-shaped response with count organic results,
// ids offset by start.
func resultsPage(start, count int) map[string]any {
	results := make([]map[string]any, count)
	for i := range results {
		n := start + i
		results[i] = map[string]any{
			"result_id": fmt.Sprintf("r%d", n),
			"title":     fmt.Sprintf("Paper %d", n),
			"link":      fmt.Sprintf("https://example.org/%d", n),
		}
	}
	return map[string]any{"organic_results": results}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.APIKey = "test-key"
	cfg.BaseURL = srv.URL
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no API key should fail")
	}
}

func TestSearchPaginates(t *testing.T) {
	var mu sync.Mutex
	var requests []struct{ start, num int }

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.Atoi(q.Get("start"))
		num, _ := strconv.Atoi(q.Get("num"))
		mu.Lock()
		requests = append(requests, struct{ start, num int }{start, num})
		mu.Unlock()

		if q.Get("engine") != "google_scholar" || q.Get("api_key") != "test-key" {
			t.Errorf("unexpected query params: %v", q)
		}
		writeJSON(t, w, resultsPage(start, num))
	}, Config{})

	papers, err := client.Search(context.Background(), "battery", source.SearchOptions{MaxResults: 30})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 30 {
		t.Errorf("got %d papers, want 30", len(papers))
	}

	want := []struct{ start, num int }{{0, 20}, {20, 10}}
	if len(requests) != len(want) {
		t.Fatalf("made %d requests, want %d: %v", len(requests), len(want), requests)
	}
	for i, r := range requests {
		if r != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestSearchStopsOnShortPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, resultsPage(0, 7))
	}, Config{})

	papers, err := client.Search(context.Background(), "battery", source.SearchOptions{MaxResults: 50})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 7 {
		t.Errorf("got %d papers, want 7", len(papers))
	}
	if client.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", client.CallCount())
	}
}

func TestSearchYearFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("as_ylo") != "2018" || q.Get("as_yhi") != "2023" || q.Get("hl") != "en" {
			t.Errorf("filter params not forwarded: %v", q)
		}
		writeJSON(t, w, resultsPage(0, 1))
	}, Config{})

	_, err := client.Search(context.Background(), "q", source.SearchOptions{
		MaxResults: 5, YearFrom: 2018, YearTo: 2023, Language: "en",
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
}

func TestSearchRetriesTransientFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff sleep")
	}
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, resultsPage(0, 3))
	}, Config{MaxRetries: 1})

	papers, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 3 || calls != 2 {
		t.Errorf("papers = %d, calls = %d; want 3 and 2", len(papers), calls)
	}
}

func TestSearchRetryExhaustion(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff sleep")
	}
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Config{MaxRetries: 1})

	_, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 3})
	var retryErr *source.RetryableError
	if !errors.As(err, &retryErr) {
		t.Fatalf("error = %v, want *source.RetryableError", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial attempt + 1 retry)", calls)
	}
}

func TestSearchAuthFailureIsPermanent(t *testing.T) {
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}, Config{})

	_, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 3})
	var permErr *source.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want *source.PermanentError", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on auth failure)", calls)
	}
}

func TestSearchBodyError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"error": "Google Scholar hasn't returned any results"})
	}, Config{})

	_, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 3})
	var apiErr *source.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *source.APIError", err)
	}
}

func TestSearchPartialResults(t *testing.T) {
	if testing.Short() {
		t.Skip("backoff sleep")
	}
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start == 0 {
			writeJSON(t, w, resultsPage(0, 20))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{MaxRetries: 1})

	papers, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 40})
	if err != nil {
		t.Fatalf("Search() should return partial results, got error %v", err)
	}
	if len(papers) != 20 {
		t.Errorf("got %d papers, want the 20 from the first page", len(papers))
	}
}

func TestCallBudget(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, resultsPage(0, 5))
	}, Config{MaxCalls: 1})

	if _, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 5}); err != nil {
		t.Fatalf("first Search() error = %v", err)
	}

	_, err := client.Search(context.Background(), "q", source.SearchOptions{MaxResults: 5})
	var limitErr *source.CallLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error = %v, want *source.CallLimitError", err)
	}
	if limitErr.Limit != 1 {
		t.Errorf("Limit = %d, want 1", limitErr.Limit)
	}
	if client.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", client.CallCount())
	}
}

func TestSearchAdvancedSplitsBudget(t *testing.T) {
	var mu sync.Mutex
	queries := map[string]int{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		queries[q.Get("q")]++
		mu.Unlock()
		num, _ := strconv.Atoi(q.Get("num"))
		if num != 5 {
			t.Errorf("num = %d, want 5 (10 results over 2 queries)", num)
		}
		// Overlapping ids across queries exercise cross-query dedupe.
		writeJSON(t, w, resultsPage(0, num))
	}, Config{})

	strategy := paper.SearchStrategy{
		Queries: []paper.SearchQuery{
			{Keywords: []string{"solid", "electrolyte"}},
			{BooleanQuery: "lithium AND anode"},
		},
		Filters: paper.Constraints{MaxResults: 10},
	}
	papers, err := client.SearchAdvanced(context.Background(), strategy)
	if err != nil {
		t.Fatalf("SearchAdvanced() error = %v", err)
	}
	if len(papers) != 5 {
		t.Errorf("got %d papers after dedupe, want 5", len(papers))
	}
	if queries["solid electrolyte"] != 1 || queries["lithium AND anode"] != 1 {
		t.Errorf("queries issued = %v", queries)
	}
}

func TestSearchAdvancedAbortsOnPermanentError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, Config{})

	strategy := paper.SearchStrategy{
		Queries: []paper.SearchQuery{{Keywords: []string{"a"}}, {Keywords: []string{"b"}}},
		Filters: paper.Constraints{MaxResults: 4},
	}
	_, err := client.SearchAdvanced(context.Background(), strategy)
	var permErr *source.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("error = %v, want *source.PermanentError", err)
	}
}

func TestSearchAdvancedEmptyStrategy(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty strategy")
	}, Config{})

	papers, err := client.SearchAdvanced(context.Background(), paper.SearchStrategy{})
	if err != nil || papers != nil {
		t.Errorf("SearchAdvanced() = %v, %v; want nil, nil", papers, err)
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	limiter := &rateLimiter{minInterval: 30 * time.Millisecond}
	ctx := context.Background()

	begin := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.wait(ctx); err != nil {
			t.Fatalf("wait() error = %v", err)
		}
	}
	if elapsed := time.Since(begin); elapsed < 60*time.Millisecond {
		t.Errorf("3 calls completed in %v, want at least 60ms of spacing", elapsed)
	}
}

func TestRateLimiterCancel(t *testing.T) {
	limiter := &rateLimiter{minInterval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	if err := limiter.wait(ctx); err != nil {
		t.Fatalf("first wait() error = %v", err)
	}
	cancel()
	if err := limiter.wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("wait() after cancel = %v, want context.Canceled", err)
	}
}
