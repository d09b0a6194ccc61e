package scholar

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/paperflow/paper"
)

var (
	summarySplitRE = regexp.MustCompile(`\s+-\s+`)
	yearRE         = regexp.MustCompile(`^(19|20)\d{2}$`)
	hostnameRE     = regexp.MustCompile(`\S+\.(?:com|org|edu|net)(?:\b|/|$)`)
	doiRE          = regexp.MustCompile(`10\.\d{4,9}/[^\s,;)}\]>]+`)
	nonWordRE      = regexp.MustCompile(`[^\w\s]`)
	whitespaceRE   = regexp.MustCompile(`\s+`)
)

// organicResult is the subset of a SerpAPI organic_results entry we read.
type organicResult struct {
	ResultID        string `json:"result_id"`
	Title           string `json:"title"`
	Link            string `json:"link"`
	Snippet         string `json:"snippet"`
	PublicationInfo struct {
		Summary string `json:"summary"`
		Authors []struct {
			Name     string `json:"name"`
			AuthorID string `json:"author_id"`
		} `json:"authors"`
	} `json:"publication_info"`
	Resources []struct {
		Title      string `json:"title"`
		FileFormat string `json:"file_format"`
		Link       string `json:"link"`
	} `json:"resources"`
	InlineLinks struct {
		CitedBy struct {
			Total int `json:"total"`
		} `json:"cited_by"`
	} `json:"inline_links"`
}

// parseResult normalizes one organic result into a RawPaper. Results without
// a title are dropped.
func parseResult(raw json.RawMessage) (paper.RawPaper, bool) {
	var res organicResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return paper.RawPaper{}, false
	}
	if strings.TrimSpace(res.Title) == "" {
		return paper.RawPaper{}, false
	}

	var rawData map[string]any
	if err := json.Unmarshal(raw, &rawData); err != nil {
		rawData = nil
	}

	authors, year, venue := parseSummary(res.PublicationInfo.Summary)
	if len(res.PublicationInfo.Authors) > 0 {
		authors = authors[:0]
		for _, a := range res.PublicationInfo.Authors {
			authors = append(authors, paper.Author{Name: a.Name, AuthorID: a.AuthorID})
		}
	}

	fullTextURL := res.Link
	for _, r := range res.Resources {
		if strings.EqualFold(r.FileFormat, "PDF") && r.Link != "" {
			fullTextURL = r.Link
			break
		}
	}

	return paper.RawPaper{
		ID:            paper.NewRawPaperID(),
		DOI:           extractDOI(res.Link, res.Snippet),
		Title:         strings.TrimSpace(res.Title),
		Authors:       authors,
		Snippet:       res.Snippet,
		Year:          year,
		Venue:         venue,
		Source:        SourceName,
		CitationCount: res.InlineLinks.CitedBy.Total,
		FullTextURL:   fullTextURL,
		RawData:       rawData,
	}, true
}

// parseSummary splits a publication_info summary of the shape
// "A Author, B Author - Journal of Things, 2021 - example.com" into author
// names, a publication year, and the venue. Hostname fragments are dropped.
func parseSummary(summary string) ([]paper.Author, int, string) {
	if strings.TrimSpace(summary) == "" {
		return nil, 0, ""
	}

	parts := summarySplitRE.Split(summary, -1)

	var authors []paper.Author
	for _, name := range strings.Split(parts[0], ",") {
		name = strings.TrimSpace(name)
		if name != "" && !hostnameRE.MatchString(name) {
			authors = append(authors, paper.Author{Name: name})
		}
	}

	var year int
	var venueTokens []string
	for _, part := range parts[1:] {
		for _, token := range strings.Split(part, ",") {
			token = strings.TrimSpace(token)
			switch {
			case token == "":
			case yearRE.MatchString(token):
				if y, err := strconv.Atoi(token); err == nil {
					year = y
				}
			case hostnameRE.MatchString(token):
			default:
				venueTokens = append(venueTokens, token)
			}
		}
	}

	return authors, year, strings.Join(venueTokens, ", ")
}

// extractDOI scans the result link and snippet for a DOI pattern, stripping
// trailing punctuation the regex tends to swallow.
func extractDOI(candidates ...string) string {
	for _, text := range candidates {
		if match := doiRE.FindString(text); match != "" {
			return strings.TrimRight(match, ".,;:)")
		}
	}
	return ""
}

// dedupeResults removes repeated papers from a multi-query fan, keeping the
// first occurrence. Identity is the provider result id when present, else the
// full-text URL, else the normalized title plus year.
func dedupeResults(papers []paper.RawPaper) []paper.RawPaper {
	seen := make(map[string]bool, len(papers))
	out := make([]paper.RawPaper, 0, len(papers))
	for _, p := range papers {
		key := dedupeKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func dedupeKey(p paper.RawPaper) string {
	if id, ok := p.RawData["result_id"].(string); ok && id != "" {
		return "id:" + id
	}
	if p.FullTextURL != "" {
		return "url:" + p.FullTextURL
	}
	return "title:" + normalizeTitle(p.Title) + ":" + strconv.Itoa(p.Year)
}

func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = nonWordRE.ReplaceAllString(t, "")
	t = whitespaceRE.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
