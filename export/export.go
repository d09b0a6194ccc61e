// Package export renders a PaperCollection as JSON, BibTeX, or Markdown.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/paperflow/paper"
)

// Supported formats.
const (
	FormatJSON     = "json"
	FormatBibTeX   = "bibtex"
	FormatMarkdown = "markdown"
)

// Export renders coll in the named format.
func Export(coll paper.PaperCollection, format string) (string, error) {
	switch format {
	case FormatJSON:
		return JSON(coll)
	case FormatBibTeX:
		return BibTeX(coll), nil
	case FormatMarkdown:
		return Markdown(coll), nil
	default:
		return "", fmt.Errorf("export: unknown format %q", format)
	}
}

// JSON renders the whole collection as indented JSON.
func JSON(coll paper.PaperCollection) (string, error) {
	data, err := json.MarshalIndent(coll, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal collection: %w", err)
	}
	return string(data), nil
}

// BibTeX renders one entry per paper. Papers that carried a BibTeX record
// from their source keep it verbatim; the rest get a generated entry with a
// unique citation key.
func BibTeX(coll paper.PaperCollection) string {
	var sb strings.Builder
	usedKeys := make(map[string]bool)

	for _, p := range coll.Papers {
		if p.BibTeX != "" {
			sb.WriteString(strings.TrimSpace(p.BibTeX))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(bibEntry(p, usedKeys))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func bibEntry(p paper.Paper, usedKeys map[string]bool) string {
	key := uniqueKey(citationKey(p), usedKeys)

	entryType := "misc"
	if p.Venue != "" {
		entryType = "article"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s{%s,\n", entryType, key)
	fmt.Fprintf(&sb, "  title = {{%s}},\n", escapeBib(p.Title))
	if len(p.Authors) > 0 {
		names := make([]string, len(p.Authors))
		for i, a := range p.Authors {
			names[i] = escapeBib(a.Name)
		}
		fmt.Fprintf(&sb, "  author = {%s},\n", strings.Join(names, " and "))
	}
	if p.Year > 0 {
		fmt.Fprintf(&sb, "  year = {%d},\n", p.Year)
	}
	if p.Venue != "" {
		fmt.Fprintf(&sb, "  journal = {%s},\n", escapeBib(p.Venue))
	}
	if p.DOI != "" {
		fmt.Fprintf(&sb, "  doi = {%s},\n", p.DOI)
	}
	if p.FullTextURL != "" {
		fmt.Fprintf(&sb, "  url = {%s},\n", p.FullTextURL)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// citationKey builds "lastname2021firstword" from the first author, year,
// and first meaningful title word.
func citationKey(p paper.Paper) string {
	name := "unknown"
	if len(p.Authors) > 0 {
		parts := strings.Fields(p.Authors[0].Name)
		if len(parts) > 0 {
			name = keyToken(parts[len(parts)-1])
		}
	}

	year := ""
	if p.Year > 0 {
		year = fmt.Sprintf("%d", p.Year)
	}

	word := ""
	for _, w := range strings.Fields(p.Title) {
		if t := keyToken(w); t != "" {
			word = t
			break
		}
	}

	key := name + year + word
	if key == "" {
		key = "paper"
	}
	return key
}

// uniqueKey appends a letter suffix on collision: smith2021deep,
// smith2021deepa, smith2021deepb, ...
func uniqueKey(key string, used map[string]bool) string {
	if !used[key] {
		used[key] = true
		return key
	}
	for suffix := 'a'; suffix <= 'z'; suffix++ {
		candidate := key + string(suffix)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
	// Past 26 collisions, fall back to a numeric counter.
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("%s%d", key, i)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

func keyToken(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

var bibEscaper = strings.NewReplacer(
	"&", `\&`,
	"%", `\%`,
	"_", `\_`,
	"#", `\#`,
)

func escapeBib(s string) string {
	return bibEscaper.Replace(s)
}

// Markdown renders a summary header plus a ranked table of the papers.
func Markdown(coll paper.PaperCollection) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Paper Search Results\n\n")
	fmt.Fprintf(&sb, "**Query**: %s\n\n", coll.Metadata.Query)
	fmt.Fprintf(&sb, "**Papers**: %d (of %d found)\n\n", len(coll.Papers), coll.Metadata.TotalFound)
	if len(coll.Facets.KeyThemes) > 0 {
		fmt.Fprintf(&sb, "**Key themes**: %s\n\n", strings.Join(coll.Facets.KeyThemes, ", "))
	}

	sb.WriteString("| # | Title | Authors | Year | Venue | Score |\n")
	sb.WriteString("|---|-------|---------|------|-------|-------|\n")
	for i, p := range coll.Papers {
		year := ""
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %.2f |\n",
			i+1,
			escapeCell(p.Title),
			escapeCell(authorLine(p.Authors)),
			year,
			escapeCell(p.Venue),
			p.RelevanceScore)
	}
	return sb.String()
}

// authorLine lists up to three authors; more become "First et al.".
func authorLine(authors []paper.Author) string {
	if len(authors) == 0 {
		return ""
	}
	if len(authors) > 3 {
		return authors[0].Name + " et al."
	}
	names := make([]string, len(authors))
	for i, a := range authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
