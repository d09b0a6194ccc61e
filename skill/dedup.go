package skill

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/prompt"
)

// DefaultDedupMaxCandidates bounds how many still-unique papers the optional
// LLM pass will consider.
const DefaultDedupMaxCandidates = 50

// Deduplicator collapses papers that refer to the same work. A rule-based
// union-find over identifiers always runs; an optional LLM pass catches
// semantic duplicates the rules miss (preprint vs published, title variants).
type Deduplicator struct {
	client        llm.Client
	enableLLMPass bool
	maxCandidates int
}

// NewDeduplicator creates a Deduplicator. client may be nil when the LLM
// pass is disabled. maxCandidates <= 0 takes the default.
func NewDeduplicator(client llm.Client, enableLLMPass bool, maxCandidates int) *Deduplicator {
	if maxCandidates <= 0 {
		maxCandidates = DefaultDedupMaxCandidates
	}
	return &Deduplicator{
		client:        client,
		enableLLMPass: enableLLMPass,
		maxCandidates: maxCandidates,
	}
}

var dedupSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"groups": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"singles": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []any{"groups", "singles"},
}

// Deduplicate returns papers with duplicate entries merged. Duplicates found
// by either pass are merged field-by-field, keeping the richest record as the
// base. LLM pass failures degrade to rule-based results; only context
// cancellation surfaces as an error.
func (d *Deduplicator) Deduplicate(ctx context.Context, papers []paper.RawPaper) ([]paper.RawPaper, error) {
	if len(papers) <= 1 {
		return papers, nil
	}

	uf := newUnionFind(len(papers))

	keyOwner := make(map[string]int)
	for i, p := range papers {
		for _, key := range identityKeys(p) {
			if owner, ok := keyOwner[key]; ok {
				uf.union(i, owner)
			} else {
				keyOwner[key] = i
			}
		}
	}

	if d.enableLLMPass && d.client != nil {
		if err := d.llmPass(ctx, papers, uf); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
	}

	return mergeComponents(papers, uf), nil
}

// identityKeys lists the identifiers under which a paper can collide with
// another: DOI, provider result id, full-text URL, normalized title.
func identityKeys(p paper.RawPaper) []string {
	var keys []string
	if p.DOI != "" {
		keys = append(keys, "doi:"+strings.ToLower(p.DOI))
	}
	if id, ok := p.RawData["result_id"].(string); ok && id != "" {
		keys = append(keys, "rid:"+id)
	}
	if p.FullTextURL != "" {
		keys = append(keys, "url:"+p.FullTextURL)
	}
	if t := normalizeTitle(p.Title); t != "" {
		keys = append(keys, "title:"+t)
	}
	return keys
}

// llmPass asks the model to group the papers the rule pass left unique.
// Runs only when there are at least two such papers and no more than
// maxCandidates. Any model or parse failure leaves the union-find untouched.
func (d *Deduplicator) llmPass(ctx context.Context, papers []paper.RawPaper, uf *unionFind) error {
	componentSize := make(map[int]int, len(papers))
	for i := range papers {
		componentSize[uf.find(i)]++
	}

	indexByID := make(map[string]int, len(papers))
	var singles []int
	for i, p := range papers {
		if componentSize[uf.find(i)] == 1 {
			singles = append(singles, i)
			indexByID[p.ID] = i
		}
	}
	if len(singles) < 2 || len(singles) > d.maxCandidates {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Papers:\n")
	for _, i := range singles {
		p := papers[i]
		sb.WriteString("- id: " + p.ID + "\n")
		sb.WriteString("  title: " + p.Title + "\n")
		if p.Year > 0 {
			sb.WriteString("  year: " + strconv.Itoa(p.Year) + "\n")
		}
	}

	data, err := d.client.CompleteJSON(ctx, prompt.Dedup, sb.String(), dedupSchema)
	if err != nil {
		return err
	}

	groups, ok := data["groups"].([]any)
	if !ok {
		return nil
	}
	for _, rawGroup := range groups {
		ids, ok := rawGroup.([]any)
		if !ok {
			continue
		}
		first := -1
		for _, rawID := range ids {
			id, ok := rawID.(string)
			if !ok {
				continue
			}
			idx, ok := indexByID[id]
			if !ok {
				continue
			}
			if first < 0 {
				first = idx
				continue
			}
			uf.union(first, idx)
		}
	}
	return nil
}

// mergeComponents collapses each union-find component into one paper,
// preserving the order of each component's first member.
func mergeComponents(papers []paper.RawPaper, uf *unionFind) []paper.RawPaper {
	components := make(map[int][]int)
	for i := range papers {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(a, b int) bool {
		return components[roots[a]][0] < components[roots[b]][0]
	})

	out := make([]paper.RawPaper, 0, len(roots))
	for _, root := range roots {
		out = append(out, mergeGroup(papers, components[root]))
	}
	return out
}

// mergeGroup merges one duplicate group. The member with the most populated
// fields wins as the base (citations break ties); missing fields are filled
// from the others and the citation count takes the group maximum.
func mergeGroup(papers []paper.RawPaper, indices []int) paper.RawPaper {
	best := indices[0]
	for _, i := range indices[1:] {
		if richness(papers[i]) > richness(papers[best]) ||
			(richness(papers[i]) == richness(papers[best]) &&
				papers[i].CitationCount > papers[best].CitationCount) {
			best = i
		}
	}

	merged := papers[best]
	for _, i := range indices {
		if i == best {
			continue
		}
		other := papers[i]
		if merged.DOI == "" {
			merged.DOI = other.DOI
		}
		if merged.Snippet == "" {
			merged.Snippet = other.Snippet
		}
		if merged.Abstract == "" {
			merged.Abstract = other.Abstract
		}
		if merged.Year == 0 {
			merged.Year = other.Year
		}
		if merged.Venue == "" {
			merged.Venue = other.Venue
		}
		if merged.FullTextURL == "" {
			merged.FullTextURL = other.FullTextURL
		}
		if merged.BibTeX == "" {
			merged.BibTeX = other.BibTeX
		}
		if other.CitationCount > merged.CitationCount {
			merged.CitationCount = other.CitationCount
		}
	}
	return merged
}

// richness counts the populated descriptive fields of a paper.
func richness(p paper.RawPaper) int {
	n := 0
	if p.DOI != "" {
		n++
	}
	if p.Snippet != "" {
		n++
	}
	if p.Abstract != "" {
		n++
	}
	if p.Year != 0 {
		n++
	}
	if p.Venue != "" {
		n++
	}
	if p.FullTextURL != "" {
		n++
	}
	return n
}

var (
	titleNonWordRE = regexp.MustCompile(`[^\w\s]`)
	titleSpaceRE   = regexp.MustCompile(`\s+`)
)

func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = titleNonWordRE.ReplaceAllString(t, "")
	t = titleSpaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// unionFind tracks duplicate groups by index with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
