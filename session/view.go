package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/paperflow/workflow"
)

// ResultPayloadMaxPapers caps how many papers a RESULT_REVIEW snapshot
// carries over the wire. The full collection stays on the session.
const ResultPayloadMaxPapers = 30

// Snapshot is the wire view of a session, shaped for a tool caller.
type Snapshot struct {
	SessionID  string `json:"session_id"`
	Query      string `json:"query"`
	IsComplete bool   `json:"is_complete"`
	Error      string `json:"error,omitempty"`

	HasPendingCheckpoint bool           `json:"has_pending_checkpoint"`
	CheckpointKind       string         `json:"checkpoint_kind,omitempty"`
	CheckpointID         string         `json:"checkpoint_id,omitempty"`
	Iteration            int            `json:"iteration,omitempty"`
	CheckpointPayload    map[string]any `json:"checkpoint_payload,omitempty"`

	UserActionRequired bool     `json:"user_action_required,omitempty"`
	UserQuestion       string   `json:"user_question,omitempty"`
	UserOptions        []string `json:"user_options,omitempty"`
	Summary            string   `json:"summary,omitempty"`

	Phase          string  `json:"phase,omitempty"`
	PhaseDetails   string  `json:"phase_details,omitempty"`
	PhaseUpdatedAt string  `json:"phase_updated_at,omitempty"`
	ElapsedS       float64 `json:"elapsed_s,omitempty"`

	PaperCount int `json:"paper_count,omitempty"`
}

// snapshot builds the current wire view of sess: completed, waiting at a
// checkpoint, or processing.
func (m *Manager) snapshot(sess *Session) Snapshot {
	sess.mu.Lock()
	snap := Snapshot{
		SessionID:  sess.id,
		Query:      sess.query,
		IsComplete: sess.complete,
	}
	if sess.runErr != nil {
		snap.Error = sess.runErr.Error()
	}
	if sess.complete && sess.result != nil {
		snap.PaperCount = len(sess.result.Papers)
	}
	phase := sess.phase
	phaseDetails := sess.phaseDetails
	phaseUpdatedAt := sess.phaseUpdatedAt
	startedAt := sess.startedAt
	sess.mu.Unlock()

	if snap.IsComplete {
		return snap
	}

	if pending := sess.handler.Pending(); pending != nil {
		snap.HasPendingCheckpoint = true
		snap.CheckpointKind = string(pending.Kind)
		snap.CheckpointID = pending.ID()
		snap.Iteration = pending.Iteration
		snap.CheckpointPayload = serializePayload(pending)
		snap.UserActionRequired = true
		snap.UserQuestion = checkpointQuestion(pending)
		snap.UserOptions = []string{"approve", "edit", "reject"}
		snap.Summary = checkpointSummary(pending)
		return snap
	}

	snap.Phase = string(phase)
	snap.PhaseDetails = phaseDetails
	if !phaseUpdatedAt.IsZero() {
		snap.PhaseUpdatedAt = phaseUpdatedAt.Format(time.RFC3339)
	}
	snap.ElapsedS = time.Since(startedAt).Seconds()
	return snap
}

// serializePayload converts a checkpoint body to plain JSON values: enums
// become strings, timestamps RFC 3339, and result payloads are truncated to
// ResultPayloadMaxPapers.
func serializePayload(ckpt *workflow.Checkpoint) map[string]any {
	switch ckpt.Kind {
	case workflow.StrategyConfirmation:
		return map[string]any{
			"intent":   toJSONValue(ckpt.Strategy.Intent),
			"strategy": toJSONValue(ckpt.Strategy.Strategy),
		}
	case workflow.ResultReview:
		return resultPayloadView(ckpt)
	}
	return nil
}

func resultPayloadView(ckpt *workflow.Checkpoint) map[string]any {
	coll := ckpt.Result.Collection
	total := len(coll.Papers)
	truncated := total > ResultPayloadMaxPapers

	limit := total
	if truncated {
		limit = ResultPayloadMaxPapers
	}
	items := make([]map[string]any, 0, limit)
	for _, p := range coll.Papers[:limit] {
		authors := make([]string, len(p.Authors))
		for i, a := range p.Authors {
			authors[i] = a.Name
		}
		tags := make([]string, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = string(t)
		}
		items = append(items, map[string]any{
			"id":              p.ID,
			"doi":             p.DOI,
			"title":           p.Title,
			"authors":         authors,
			"year":            p.Year,
			"venue":           p.Venue,
			"relevance_score": p.RelevanceScore,
			"tags":            tags,
		})
	}

	return map[string]any{
		"papers":             items,
		"total_papers":       total,
		"truncated":          truncated,
		"facets":             toJSONValue(coll.Facets),
		"accumulated_count":  len(ckpt.Result.Accumulated),
		"score_distribution": scoreDistribution(ckpt),
	}
}

// scoreDistribution buckets the collection's papers: high >= 0.7,
// medium [0.3, 0.7), low < 0.3.
func scoreDistribution(ckpt *workflow.Checkpoint) map[string]int {
	dist := map[string]int{"high": 0, "medium": 0, "low": 0}
	for _, p := range ckpt.Result.Collection.Papers {
		switch {
		case p.RelevanceScore >= 0.7:
			dist["high"]++
		case p.RelevanceScore >= 0.3:
			dist["medium"]++
		default:
			dist["low"]++
		}
	}
	return dist
}

// checkpointQuestion renders the human-readable prompt shown to the decider.
func checkpointQuestion(ckpt *workflow.Checkpoint) string {
	var sb strings.Builder
	switch ckpt.Kind {
	case workflow.StrategyConfirmation:
		p := ckpt.Strategy
		sb.WriteString("## Confirm search strategy\n\n")
		fmt.Fprintf(&sb, "**Topic**: %s\n\n", p.Intent.Topic)
		sb.WriteString("**Queries**:\n")
		for i, q := range p.Strategy.Queries {
			fmt.Fprintf(&sb, "%d. `%s`\n", i+1, q.BooleanQuery)
		}
		fmt.Fprintf(&sb, "\n**Sources**: %s\n", strings.Join(p.Strategy.Sources, ", "))
		if f := p.Strategy.Filters; f.YearFrom > 0 || f.YearTo > 0 {
			fmt.Fprintf(&sb, "**Years**: %s\n", yearRange(f.YearFrom, f.YearTo))
		}
		sb.WriteString("\nReply `approve` to run the search, `edit` with a revised strategy, or `reject` with feedback.")

	case workflow.ResultReview:
		coll := ckpt.Result.Collection
		fmt.Fprintf(&sb, "## Review search results (%d papers)\n\n", len(coll.Papers))
		top := coll.Papers
		if len(top) > 5 {
			top = top[:5]
		}
		if len(top) > 0 {
			sb.WriteString("**Top papers**:\n")
			for i, p := range top {
				year := ""
				if p.Year > 0 {
					year = fmt.Sprintf(" (%d)", p.Year)
				}
				fmt.Fprintf(&sb, "%d. [%.2f] %s%s\n", i+1, p.RelevanceScore, p.Title, year)
			}
			sb.WriteString("\n")
		}
		dist := scoreDistribution(ckpt)
		fmt.Fprintf(&sb, "**Relevance**: %d high / %d medium / %d low\n", dist["high"], dist["medium"], dist["low"])
		if n := len(ckpt.Result.Accumulated); n > 0 {
			fmt.Fprintf(&sb, "**Kept from earlier rounds**: %d\n", n)
		}
		sb.WriteString("\nReply `approve` to finish, or `reject` with feedback (or marked papers) to search again.")
	}
	return sb.String()
}

// checkpointSummary is the one-line version of the question.
func checkpointSummary(ckpt *workflow.Checkpoint) string {
	switch ckpt.Kind {
	case workflow.StrategyConfirmation:
		return fmt.Sprintf("Strategy with %d queries awaiting confirmation", len(ckpt.Strategy.Strategy.Queries))
	case workflow.ResultReview:
		dist := scoreDistribution(ckpt)
		return fmt.Sprintf("Found %d papers (%d high relevance) awaiting review",
			len(ckpt.Result.Collection.Papers), dist["high"])
	}
	return ""
}

func yearRange(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("from %d", from)
	case to > 0:
		return fmt.Sprintf("until %d", to)
	}
	return ""
}

// toJSONValue round-trips v through JSON so only plain maps, slices, and
// scalars reach the wire.
func toJSONValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
