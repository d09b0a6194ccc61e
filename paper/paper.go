// Package paper defines the core value types shared by every stage of the
// search pipeline. All other packages import from here; this package imports
// nothing but the standard library and uuid.
package paper

import (
	"time"

	"github.com/google/uuid"
)

// IntentType classifies what kind of literature the user is after.
type IntentType string

const (
	IntentSurvey   IntentType = "survey"
	IntentMethod   IntentType = "method"
	IntentDataset  IntentType = "dataset"
	IntentBaseline IntentType = "baseline"
)

// Valid reports whether t is one of the known intent types.
func (t IntentType) Valid() bool {
	switch t {
	case IntentSurvey, IntentMethod, IntentDataset, IntentBaseline:
		return true
	}
	return false
}

// Tag labels the character of a paper as judged by the relevance scorer.
type Tag string

const (
	TagMethod      Tag = "method"
	TagReview      Tag = "review"
	TagEmpirical   Tag = "empirical"
	TagTheoretical Tag = "theoretical"
	TagDataset     Tag = "dataset"
)

// Valid reports whether t is one of the known paper tags.
func (t Tag) Valid() bool {
	switch t {
	case TagMethod, TagReview, TagEmpirical, TagTheoretical, TagDataset:
		return true
	}
	return false
}

// FilterTags returns only the valid tags from raw, preserving order.
func FilterTags(raw []string) []Tag {
	var tags []Tag
	for _, r := range raw {
		if t := Tag(r); t.Valid() {
			tags = append(tags, t)
		}
	}
	return tags
}

// Constraints narrows a search: year range, language, and result cap.
// Zero values mean "unconstrained" except MaxResults, which defaults to 100
// via DefaultConstraints.
type Constraints struct {
	YearFrom   int    `json:"year_from,omitempty"`
	YearTo     int    `json:"year_to,omitempty"`
	Language   string `json:"language,omitempty"`
	MaxResults int    `json:"max_results"`
}

// DefaultConstraints returns the zero constraint set with the default
// result cap.
func DefaultConstraints() Constraints {
	return Constraints{MaxResults: 100}
}

// ParsedIntent is the structured interpretation of the user's query.
type ParsedIntent struct {
	Topic       string      `json:"topic"`
	Concepts    []string    `json:"concepts"`
	IntentType  IntentType  `json:"intent_type"`
	Constraints Constraints `json:"constraints"`
}

// SynonymEntry maps one keyword to its synonym expansions.
type SynonymEntry struct {
	Keyword  string   `json:"keyword"`
	Synonyms []string `json:"synonyms"`
}

// SearchQuery is a single executable query within a strategy.
type SearchQuery struct {
	Keywords     []string       `json:"keywords"`
	SynonymMap   []SynonymEntry `json:"synonym_map,omitempty"`
	BooleanQuery string         `json:"boolean_query"`
}

// SearchStrategy bundles one or more queries with source selection and
// shared filters.
type SearchStrategy struct {
	Queries []SearchQuery `json:"queries"`
	Sources []string      `json:"sources"`
	Filters Constraints   `json:"filters"`
}

// UserFeedback captures a decider's revision at a checkpoint.
type UserFeedback struct {
	MarkedRelevant   []string `json:"marked_relevant,omitempty"`
	MarkedIrrelevant []string `json:"marked_irrelevant,omitempty"`
	FreeTextFeedback string   `json:"free_text_feedback,omitempty"`
}

// QueryBuilderInput is the full context handed to the query builder each
// iteration: the parsed intent plus everything learned so far.
type QueryBuilderInput struct {
	Intent             ParsedIntent     `json:"intent"`
	PreviousStrategies []SearchStrategy `json:"previous_strategies,omitempty"`
	UserFeedback       *UserFeedback    `json:"user_feedback,omitempty"`
}

// Author is a single paper author.
type Author struct {
	Name     string `json:"name"`
	AuthorID string `json:"author_id,omitempty"`
}

// RawPaper is a normalized search result before scoring. ID is stable within
// a result set; NewRawPaperID supplies one when the source has none.
type RawPaper struct {
	ID            string         `json:"id"`
	DOI           string         `json:"doi,omitempty"`
	Title         string         `json:"title"`
	Authors       []Author       `json:"authors,omitempty"`
	Abstract      string         `json:"abstract,omitempty"`
	Snippet       string         `json:"snippet,omitempty"`
	Year          int            `json:"year,omitempty"`
	Venue         string         `json:"venue,omitempty"`
	Source        string         `json:"source"`
	CitationCount int            `json:"citation_count"`
	FullTextURL   string         `json:"full_text_url,omitempty"`
	BibTeX        string         `json:"bibtex,omitempty"`
	RawData       map[string]any `json:"raw_data,omitempty"`
}

// NewRawPaperID returns a fresh unique paper identifier.
func NewRawPaperID() string {
	return uuid.NewString()
}

// ScoredPaper pairs a raw paper with its relevance judgment.
type ScoredPaper struct {
	Paper           RawPaper `json:"paper"`
	RelevanceScore  float64  `json:"relevance_score"`
	RelevanceReason string   `json:"relevance_reason"`
	Tags            []Tag    `json:"tags,omitempty"`
}

// ClampScore forces s into [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Paper is the output projection of a scored paper.
type Paper struct {
	ID              string   `json:"id"`
	DOI             string   `json:"doi,omitempty"`
	Title           string   `json:"title"`
	Authors         []Author `json:"authors"`
	Abstract        string   `json:"abstract,omitempty"`
	Year            int      `json:"year,omitempty"`
	Venue           string   `json:"venue,omitempty"`
	Source          string   `json:"source"`
	CitationCount   int      `json:"citation_count"`
	RelevanceScore  float64  `json:"relevance_score"`
	RelevanceReason string   `json:"relevance_reason"`
	Tags            []Tag    `json:"tags,omitempty"`
	FullTextURL     string   `json:"full_text_url,omitempty"`
	BibTeX          string   `json:"bibtex,omitempty"`
}

// Facets summarize a collection along a few axes.
type Facets struct {
	ByYear     map[int]int    `json:"by_year"`
	ByVenue    map[string]int `json:"by_venue"`
	TopAuthors []string       `json:"top_authors"`
	KeyThemes  []string       `json:"key_themes"`
}

// Metadata records how a collection came to be.
type Metadata struct {
	Query          string         `json:"query"`
	SearchStrategy SearchStrategy `json:"search_strategy"`
	TotalFound     int            `json:"total_found"`
	Timestamp      time.Time      `json:"timestamp"`
}

// PaperCollection is the pipeline's final product: a ranked, deduplicated,
// faceted list of papers.
type PaperCollection struct {
	Metadata Metadata `json:"metadata"`
	Papers   []Paper  `json:"papers"`
	Facets   Facets   `json:"facets"`
}
