package paper

import (
	"errors"
	"testing"
)

func TestDecodeIntent(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantErr bool
	}{
		{
			name: "valid",
			data: map[string]any{
				"topic":       "perovskite solar cells",
				"concepts":    []any{"perovskite", "solar cell"},
				"intent_type": "survey",
				"constraints": map[string]any{"year_from": 2018, "year_to": 2024, "max_results": 50},
			},
		},
		{
			name: "empty topic",
			data: map[string]any{
				"topic":       "",
				"concepts":    []any{"x"},
				"intent_type": "survey",
			},
			wantErr: true,
		},
		{
			name: "no concepts",
			data: map[string]any{
				"topic":       "x",
				"concepts":    []any{},
				"intent_type": "survey",
			},
			wantErr: true,
		},
		{
			name: "unknown intent type",
			data: map[string]any{
				"topic":       "x",
				"concepts":    []any{"x"},
				"intent_type": "overview",
			},
			wantErr: true,
		},
		{
			name: "reversed year range",
			data: map[string]any{
				"topic":       "x",
				"concepts":    []any{"x"},
				"intent_type": "method",
				"constraints": map[string]any{"year_from": 2024, "year_to": 2018},
			},
			wantErr: true,
		},
		{
			name:    "nil mapping",
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := DecodeIntent(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeIntent() = %+v, want error", intent)
				}
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("error %v does not wrap ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeIntent() error = %v", err)
			}
			if intent.Topic != tt.data["topic"] {
				t.Errorf("Topic = %q, want %q", intent.Topic, tt.data["topic"])
			}
		})
	}
}

func TestDecodeStrategy(t *testing.T) {
	valid := map[string]any{
		"queries": []any{
			map[string]any{
				"keywords":      []any{"perovskite"},
				"boolean_query": "perovskite AND stability",
				"synonym_map": []any{
					map[string]any{"keyword": "perovskite", "synonyms": []any{"PSC"}},
				},
			},
		},
		"sources": []any{"serpapi_scholar"},
		"filters": map[string]any{"max_results": 100},
	}

	strategy, err := DecodeStrategy(valid)
	if err != nil {
		t.Fatalf("DecodeStrategy() error = %v", err)
	}
	if len(strategy.Queries) != 1 || strategy.Queries[0].BooleanQuery != "perovskite AND stability" {
		t.Errorf("unexpected queries: %+v", strategy.Queries)
	}
	if len(strategy.Queries[0].SynonymMap) != 1 || strategy.Queries[0].SynonymMap[0].Keyword != "perovskite" {
		t.Errorf("synonym map not carried: %+v", strategy.Queries[0].SynonymMap)
	}

	invalid := map[string]any{
		"queries": []any{
			map[string]any{"keywords": []any{"x"}, "boolean_query": ""},
		},
		"sources": []any{"serpapi_scholar"},
	}
	if _, err := DecodeStrategy(invalid); !errors.Is(err, ErrInvalid) {
		t.Errorf("empty boolean_query: error = %v, want ErrInvalid", err)
	}
}

func TestDecodeFeedback(t *testing.T) {
	fb, err := DecodeFeedback(map[string]any{
		"marked_relevant":    []any{"p1"},
		"marked_irrelevant":  []any{"p2"},
		"free_text_feedback": "more method papers",
	})
	if err != nil {
		t.Fatalf("DecodeFeedback() error = %v", err)
	}
	if fb.FreeTextFeedback != "more method papers" {
		t.Errorf("FreeTextFeedback = %q", fb.FreeTextFeedback)
	}

	_, err = DecodeFeedback(map[string]any{
		"marked_relevant":   []any{"p1"},
		"marked_irrelevant": []any{"p1"},
	})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("overlapping sets: error = %v, want ErrInvalid", err)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.7, 0.7},
		{1, 1},
		{1.3, 1},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilterTags(t *testing.T) {
	got := FilterTags([]string{"method", "bogus", "review", ""})
	want := []Tag{TagMethod, TagReview}
	if len(got) != len(want) {
		t.Fatalf("FilterTags() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilterTags()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
