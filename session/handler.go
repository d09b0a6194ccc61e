// Package session exposes the workflow engine to out-of-process callers
// through a start/decide/get/export surface, while keeping the engine's
// synchronous checkpoint contract intact.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/paperflow/workflow"
)

// ErrNoPendingCheckpoint is returned by SetDecision when the run is not
// waiting at a checkpoint.
var ErrNoPendingCheckpoint = errors.New("session: no pending checkpoint")

// CheckpointHandler bridges the engine's blocking Handle call and the
// session layer's request/response surface. Handle publishes the checkpoint
// and blocks on an unbuffered decision channel; SetDecision feeds it.
type CheckpointHandler struct {
	mu       sync.Mutex
	pending  *workflow.Checkpoint
	decision chan workflow.Decision
}

// NewCheckpointHandler creates a handler with no pending checkpoint.
func NewCheckpointHandler() *CheckpointHandler {
	return &CheckpointHandler{decision: make(chan workflow.Decision)}
}

// Handle implements workflow.Handler: it records ckpt as pending and blocks
// until SetDecision supplies a verdict or ctx is canceled. The pending
// checkpoint is cleared on either exit.
func (h *CheckpointHandler) Handle(ctx context.Context, ckpt workflow.Checkpoint) (workflow.Decision, error) {
	h.mu.Lock()
	h.pending = &ckpt
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.pending = nil
		h.mu.Unlock()
	}()

	select {
	case d := <-h.decision:
		return d, nil
	case <-ctx.Done():
		return workflow.Decision{}, ctx.Err()
	}
}

// Pending returns a copy of the checkpoint the run is waiting on, or nil.
func (h *CheckpointHandler) Pending() *workflow.Checkpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pending == nil {
		return nil
	}
	ckpt := *h.pending
	return &ckpt
}

// SetDecision delivers a decision to the blocked Handle call. Fails
// immediately when no checkpoint is pending; otherwise blocks until the run
// consumes the decision or ctx expires.
func (h *CheckpointHandler) SetDecision(ctx context.Context, d workflow.Decision) error {
	h.mu.Lock()
	waiting := h.pending != nil
	h.mu.Unlock()
	if !waiting {
		return ErrNoPendingCheckpoint
	}

	select {
	case h.decision <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
