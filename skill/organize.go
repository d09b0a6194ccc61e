package skill

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/dshills/paperflow/paper"
)

const (
	// MinRelevanceScore is the cut below which papers drop out of the
	// final collection.
	MinRelevanceScore = 0.3

	themeScoreFloor = 0.5
	themeMinWordLen = 3
	maxThemes       = 8
	maxTopAuthors   = 10
)

// Organizer turns scored papers into the final ranked, faceted collection.
// Fully deterministic; no model involved.
type Organizer struct{}

// NewOrganizer creates an Organizer.
func NewOrganizer() *Organizer {
	return &Organizer{}
}

// Organize filters out low-relevance papers, ranks the rest, and computes
// facets. totalFound is the pre-filter paper count recorded in metadata.
func (o *Organizer) Organize(query string, strategy paper.SearchStrategy, scored []paper.ScoredPaper) paper.PaperCollection {
	kept := make([]paper.ScoredPaper, 0, len(scored))
	for _, sp := range scored {
		if sp.RelevanceScore >= MinRelevanceScore {
			kept = append(kept, sp)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		pa, pb := kept[a], kept[b]
		if pa.RelevanceScore != pb.RelevanceScore {
			return pa.RelevanceScore > pb.RelevanceScore
		}
		if pa.Paper.CitationCount != pb.Paper.CitationCount {
			return pa.Paper.CitationCount > pb.Paper.CitationCount
		}
		if pa.Paper.Year != pb.Paper.Year {
			return pa.Paper.Year > pb.Paper.Year
		}
		return strings.ToLower(pa.Paper.Title) < strings.ToLower(pb.Paper.Title)
	})

	papers := make([]paper.Paper, len(kept))
	for i, sp := range kept {
		papers[i] = toPaper(sp)
	}

	return paper.PaperCollection{
		Metadata: paper.Metadata{
			Query:          query,
			SearchStrategy: strategy,
			TotalFound:     len(scored),
			Timestamp:      time.Now().UTC(),
		},
		Papers: papers,
		Facets: buildFacets(kept),
	}
}

func toPaper(sp paper.ScoredPaper) paper.Paper {
	p := sp.Paper
	return paper.Paper{
		ID:              p.ID,
		DOI:             p.DOI,
		Title:           p.Title,
		Authors:         p.Authors,
		Abstract:        p.Abstract,
		Year:            p.Year,
		Venue:           p.Venue,
		Source:          p.Source,
		CitationCount:   p.CitationCount,
		RelevanceScore:  sp.RelevanceScore,
		RelevanceReason: sp.RelevanceReason,
		Tags:            sp.Tags,
		FullTextURL:     p.FullTextURL,
		BibTeX:          p.BibTeX,
	}
}

func buildFacets(kept []paper.ScoredPaper) paper.Facets {
	byYear := make(map[int]int)
	byVenue := make(map[string]int)
	authorCounts := make(map[string]int)

	for _, sp := range kept {
		p := sp.Paper
		if p.Year > 0 {
			byYear[p.Year]++
		}
		if p.Venue != "" {
			byVenue[titleCase(p.Venue)]++
		}
		for _, a := range p.Authors {
			if a.Name != "" {
				authorCounts[a.Name]++
			}
		}
	}

	return paper.Facets{
		ByYear:     byYear,
		ByVenue:    byVenue,
		TopAuthors: topByCount(authorCounts, maxTopAuthors),
		KeyThemes:  keyThemes(kept),
	}
}

// keyThemes extracts the most frequent meaningful title words from the
// high-scoring papers.
func keyThemes(kept []paper.ScoredPaper) []string {
	counts := make(map[string]int)
	for _, sp := range kept {
		if sp.RelevanceScore < themeScoreFloor {
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(sp.Paper.Title)) {
			word = strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
			if len(word) < themeMinWordLen || themeStopwords[word] {
				continue
			}
			counts[word]++
		}
	}
	return topByCount(counts, maxThemes)
}

// topByCount returns up to n keys ordered by descending count, ties broken
// alphabetically for deterministic output.
func topByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		for j := 1; j < len(runes); j++ {
			runes[j] = unicode.ToLower(runes[j])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

var themeStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"has": true, "have": true, "been": true, "its": true, "can": true,
	"using": true, "based": true, "via": true, "study": true,
	"analysis": true, "approach": true, "toward": true, "towards": true,
	"their": true, "these": true, "those": true, "between": true,
	"into": true, "over": true, "under": true, "through": true,
	"during": true, "new": true, "review": true, "survey": true,
	"not": true, "but": true, "all": true, "our": true, "how": true,
	"what": true, "when": true, "where": true, "which": true,
}
