// Package workflow drives a full paper-search run: the six stages in order,
// iterated under a human-in-the-loop checkpoint protocol until the decider
// approves or the iteration ceiling is reached.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/paperflow/paper"
)

// Kind names a checkpoint type. The payload field populated on a Checkpoint
// follows from its kind.
type Kind string

const (
	// StrategyConfirmation pauses after query building, before any search.
	StrategyConfirmation Kind = "STRATEGY_CONFIRMATION"
	// ResultReview pauses after organizing, with the iteration's collection.
	ResultReview Kind = "RESULT_REVIEW"
)

// Action is a decider's verdict on a checkpoint.
type Action string

const (
	Approve Action = "APPROVE"
	Edit    Action = "EDIT"
	Reject  Action = "REJECT"
)

// StrategyPayload is the STRATEGY_CONFIRMATION checkpoint body.
type StrategyPayload struct {
	Intent   paper.ParsedIntent   `json:"intent"`
	Strategy paper.SearchStrategy `json:"strategy"`
}

// ResultPayload is the RESULT_REVIEW checkpoint body.
type ResultPayload struct {
	Collection  paper.PaperCollection `json:"collection"`
	Accumulated []paper.Paper         `json:"accumulated"`
}

// Checkpoint is a pause point handed to the decider. Exactly one of Strategy
// and Result is non-nil, matching Kind.
type Checkpoint struct {
	Kind      Kind             `json:"kind"`
	RunID     string           `json:"run_id"`
	Iteration int              `json:"iteration"`
	Timestamp time.Time        `json:"timestamp"`
	Strategy  *StrategyPayload `json:"strategy,omitempty"`
	Result    *ResultPayload   `json:"result,omitempty"`
}

// ID identifies the checkpoint within its run: "run_id:iteration".
func (c Checkpoint) ID() string {
	return fmt.Sprintf("%s:%d", c.RunID, c.Iteration)
}

// Signature distinguishes the two checkpoints an iteration can produce:
// "run_id:iteration:kind".
func (c Checkpoint) Signature() string {
	return fmt.Sprintf("%s:%d:%s", c.RunID, c.Iteration, c.Kind)
}

// Decision is the decider's answer to a checkpoint.
type Decision struct {
	Action Action `json:"action"`
	// RevisedData optionally carries a replacement strategy (at
	// STRATEGY_CONFIRMATION) or UserFeedback-shaped guidance (at
	// RESULT_REVIEW).
	RevisedData map[string]any `json:"revised_data,omitempty"`
	// Note is free-text feedback used when RevisedData is absent or not
	// feedback-shaped.
	Note string `json:"note,omitempty"`
}

// Handler is the decider: it receives each checkpoint and blocks the run
// until a decision is available. Handler errors, including context
// cancellation, propagate out of Engine.Run.
type Handler interface {
	Handle(ctx context.Context, ckpt Checkpoint) (Decision, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ckpt Checkpoint) (Decision, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ckpt Checkpoint) (Decision, error) {
	return f(ctx, ckpt)
}
