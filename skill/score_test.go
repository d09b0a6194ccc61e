package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/paper"
)

// scoreResponseFor builds a valid scoring response covering every id in the
// message, echoing score for each.
func scoreResponseFor(msg string, score float64) string {
	var results []map[string]any
	for _, line := range strings.Split(msg, "\n") {
		if id, ok := strings.CutPrefix(line, "- ID: "); ok {
			results = append(results, map[string]any{
				"paper_id":         id,
				"relevance_score":  score,
				"relevance_reason": "matches the topic",
				"tags":             []string{"method"},
			})
		}
	}
	data, _ := json.Marshal(map[string]any{"results": results})
	return string(data)
}

// scoringClient is an llm.Client that answers every scoring request with a
// fixed score and counts in-flight requests.
type scoringClient struct {
	score float64
	err   error

	mu        sync.Mutex
	calls     int
	inflight  int32
	maxSeen   int32
	sawSystem string
}

func (c *scoringClient) Complete(ctx context.Context, system, user string) (string, error) {
	return "", errors.New("not used")
}

func (c *scoringClient) CompleteJSON(ctx context.Context, system, user string, schema map[string]any) (map[string]any, error) {
	cur := atomic.AddInt32(&c.inflight, 1)
	defer atomic.AddInt32(&c.inflight, -1)
	for {
		max := atomic.LoadInt32(&c.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&c.maxSeen, max, cur) {
			break
		}
	}

	c.mu.Lock()
	c.calls++
	c.sawSystem = system
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	return llm.ExtractJSON(scoreResponseFor(user, c.score))
}

func (c *scoringClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestScoreBatching(t *testing.T) {
	client := &scoringClient{score: 0.8}
	scorer := NewRelevanceScorer(client, 4, 2, "")

	papers := rawPapers("p", 10)
	scored, err := scorer.Score(context.Background(), surveyIntent(), papers)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scored) != len(papers) {
		t.Fatalf("got %d scored papers, want %d", len(scored), len(papers))
	}
	for i, sp := range scored {
		if sp.Paper.ID != papers[i].ID {
			t.Errorf("scored[%d] = %s, want input order preserved (%s)", i, sp.Paper.ID, papers[i].ID)
		}
		if sp.RelevanceScore != 0.8 {
			t.Errorf("scored[%d].RelevanceScore = %v", i, sp.RelevanceScore)
		}
		if len(sp.Tags) != 1 || sp.Tags[0] != paper.TagMethod {
			t.Errorf("scored[%d].Tags = %v", i, sp.Tags)
		}
	}

	// 10 papers in batches of 4 is 3 requests.
	if client.callCount() != 3 {
		t.Errorf("calls = %d, want 3", client.callCount())
	}
	if client.maxSeen > 2 {
		t.Errorf("observed %d concurrent requests, cap is 2", client.maxSeen)
	}
}

func TestScoreEmptyInput(t *testing.T) {
	scorer := NewRelevanceScorer(&scoringClient{}, 0, 0, "")
	scored, err := scorer.Score(context.Background(), surveyIntent(), nil)
	if err != nil || scored != nil {
		t.Errorf("Score() = %v, %v; want nil, nil", scored, err)
	}
}

func TestScoreFailedBatchDegrades(t *testing.T) {
	client := &scoringClient{err: errors.New("model down")}
	scorer := NewRelevanceScorer(client, 5, 1, "")

	papers := rawPapers("p", 3)
	scored, err := scorer.Score(context.Background(), surveyIntent(), papers)
	if err != nil {
		t.Fatalf("Score() error = %v, want zero-score defaults", err)
	}
	for i, sp := range scored {
		if sp.RelevanceScore != 0 || sp.RelevanceReason != "Scoring unavailable" {
			t.Errorf("scored[%d] = %+v, want the zero-score default", i, sp)
		}
		if sp.Paper.ID != papers[i].ID {
			t.Errorf("scored[%d] lost its paper", i)
		}
	}
}

func TestScoreClampsAndFilters(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"results": [
		{"paper_id": "p-0", "relevance_score": 1.7, "relevance_reason": "r", "tags": ["method", "bogus"]},
		{"paper_id": "p-1", "relevance_score": -0.4, "relevance_reason": "r"}
	]}`}}
	scorer := NewRelevanceScorer(mock, 10, 1, "")

	scored, err := scorer.Score(context.Background(), surveyIntent(), rawPapers("p", 2))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scored[0].RelevanceScore != 1 {
		t.Errorf("score above 1 not clamped: %v", scored[0].RelevanceScore)
	}
	if scored[1].RelevanceScore != 0 {
		t.Errorf("negative score not clamped: %v", scored[1].RelevanceScore)
	}
	if len(scored[0].Tags) != 1 || scored[0].Tags[0] != paper.TagMethod {
		t.Errorf("unknown tags not filtered: %v", scored[0].Tags)
	}
}

func TestScoreUnscoredPaperDefaults(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"results": [
		{"paper_id": "p-0", "relevance_score": 0.9, "relevance_reason": "r"}
	]}`}}
	scorer := NewRelevanceScorer(mock, 10, 1, "")

	scored, err := scorer.Score(context.Background(), surveyIntent(), rawPapers("p", 2))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scored[1].RelevanceScore != 0 || scored[1].RelevanceReason != "Scoring unavailable" {
		t.Errorf("paper the model skipped = %+v", scored[1])
	}
}

func TestBatchMessageTruncates(t *testing.T) {
	long := strings.Repeat("x", 1000)
	msg := batchMessage(surveyIntent(), []paper.RawPaper{{
		ID:      "p-0",
		Title:   long,
		Snippet: long,
	}})

	if strings.Contains(msg, long) {
		t.Error("full-length field not truncated")
	}
	if !strings.Contains(msg, fmt.Sprintf("Title: %s\n", long[:scoreTitleLimit])) {
		t.Error("truncated title missing")
	}
	if !strings.Contains(msg, fmt.Sprintf("Snippet: %s\n", long[:scoreSnippetLimit])) {
		t.Error("truncated snippet missing")
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		limit int
		want  string
	}{
		{"ascii within limit", "short", 10, "short"},
		{"ascii at limit", "exact", 5, "exact"},
		{"ascii over limit", "toolong", 4, "tool"},
		{"multibyte mid-rune", "钙钛矿太阳能电池", 10, "钙钛矿"},
		{"multibyte on boundary", "钙钛矿", 6, "钙钛"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.s, tt.limit)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.s, tt.limit)
			}
		})
	}
}

func TestScoreCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := NewRelevanceScorer(&llm.MockClient{}, 10, 1, "")
	_, err := scorer.Score(ctx, surveyIntent(), rawPapers("p", 2))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
