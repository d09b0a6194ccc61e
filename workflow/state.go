package workflow

import "github.com/dshills/paperflow/paper"

// IterationRecord is one completed iteration in a run's history.
type IterationRecord struct {
	Strategy    paper.SearchStrategy `json:"strategy"`
	ResultCount int                  `json:"result_count"`
	Feedback    *paper.UserFeedback  `json:"feedback,omitempty"`
}

// WorkflowState carries everything a run learns across iterations.
type WorkflowState struct {
	CurrentIteration  int               `json:"current_iteration"`
	History           []IterationRecord `json:"history"`
	AccumulatedPapers []paper.Paper     `json:"accumulated_papers"`
	IsComplete        bool              `json:"is_complete"`
}

// Record closes out an iteration: appends it to history and advances the
// iteration counter.
func (s *WorkflowState) Record(strategy paper.SearchStrategy, resultCount int, feedback *paper.UserFeedback) {
	s.History = append(s.History, IterationRecord{
		Strategy:    strategy,
		ResultCount: resultCount,
		Feedback:    feedback,
	})
	s.CurrentIteration++
}

// PreviousStrategies lists the strategies tried so far, oldest first.
func (s *WorkflowState) PreviousStrategies() []paper.SearchStrategy {
	if len(s.History) == 0 {
		return nil
	}
	strategies := make([]paper.SearchStrategy, len(s.History))
	for i, rec := range s.History {
		strategies[i] = rec.Strategy
	}
	return strategies
}

// LatestFeedback returns the most recent recorded feedback, or nil.
func (s *WorkflowState) LatestFeedback() *paper.UserFeedback {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Feedback != nil {
			return s.History[i].Feedback
		}
	}
	return nil
}

// Accumulate appends the papers from coll that feedback marked relevant,
// skipping ids already accumulated.
func (s *WorkflowState) Accumulate(coll paper.PaperCollection, feedback paper.UserFeedback) {
	if len(feedback.MarkedRelevant) == 0 {
		return
	}
	have := make(map[string]bool, len(s.AccumulatedPapers))
	for _, p := range s.AccumulatedPapers {
		have[p.ID] = true
	}
	byID := make(map[string]paper.Paper, len(coll.Papers))
	for _, p := range coll.Papers {
		byID[p.ID] = p
	}
	for _, id := range feedback.MarkedRelevant {
		p, ok := byID[id]
		if !ok || have[id] {
			continue
		}
		s.AccumulatedPapers = append(s.AccumulatedPapers, p)
		have[id] = true
	}
}

// MergeAccumulated appends accumulated papers the collection does not already
// contain (by id) and returns the updated collection.
func (s *WorkflowState) MergeAccumulated(coll paper.PaperCollection) paper.PaperCollection {
	if len(s.AccumulatedPapers) == 0 {
		return coll
	}
	have := make(map[string]bool, len(coll.Papers))
	for _, p := range coll.Papers {
		have[p.ID] = true
	}
	for _, p := range s.AccumulatedPapers {
		if have[p.ID] {
			continue
		}
		coll.Papers = append(coll.Papers, p)
		have[p.ID] = true
	}
	return coll
}
