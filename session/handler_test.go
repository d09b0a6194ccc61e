package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/paperflow/workflow"
)

func TestHandlerRoundTrip(t *testing.T) {
	h := NewCheckpointHandler()
	ckpt := workflow.Checkpoint{Kind: workflow.ResultReview, RunID: "run-1", Iteration: 0}

	type handleResult struct {
		decision workflow.Decision
		err      error
	}
	got := make(chan handleResult, 1)
	go func() {
		d, err := h.Handle(context.Background(), ckpt)
		got <- handleResult{d, err}
	}()

	// Wait for Handle to publish the checkpoint.
	deadline := time.Now().Add(2 * time.Second)
	for h.Pending() == nil {
		if time.Now().After(deadline) {
			t.Fatal("checkpoint never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	pending := h.Pending()
	if pending.Signature() != ckpt.Signature() {
		t.Errorf("Pending() = %+v", pending)
	}

	want := workflow.Decision{Action: workflow.Approve, Note: "looks right"}
	if err := h.SetDecision(context.Background(), want); err != nil {
		t.Fatalf("SetDecision() error = %v", err)
	}

	res := <-got
	if res.err != nil {
		t.Fatalf("Handle() error = %v", res.err)
	}
	if res.decision.Action != want.Action || res.decision.Note != want.Note {
		t.Errorf("Handle() = %+v, want %+v", res.decision, want)
	}

	// Pending clears once the decision is consumed.
	deadline = time.Now().Add(2 * time.Second)
	for h.Pending() != nil {
		if time.Now().After(deadline) {
			t.Fatal("pending checkpoint not cleared")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHandlerSetDecisionWithoutPending(t *testing.T) {
	h := NewCheckpointHandler()
	err := h.SetDecision(context.Background(), workflow.Decision{Action: workflow.Approve})
	if !errors.Is(err, ErrNoPendingCheckpoint) {
		t.Errorf("SetDecision() error = %v, want ErrNoPendingCheckpoint", err)
	}
}

func TestHandlerPendingIsCopy(t *testing.T) {
	h := NewCheckpointHandler()
	go h.Handle(context.Background(), workflow.Checkpoint{RunID: "run-1"}) //nolint:errcheck

	deadline := time.Now().Add(2 * time.Second)
	for h.Pending() == nil {
		if time.Now().After(deadline) {
			t.Fatal("checkpoint never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	p := h.Pending()
	p.RunID = "mutated"
	if h.Pending().RunID != "run-1" {
		t.Error("Pending() returned a live reference")
	}

	// Unblock the goroutine.
	_ = h.SetDecision(context.Background(), workflow.Decision{Action: workflow.Approve})
}

func TestHandlerCancellation(t *testing.T) {
	h := NewCheckpointHandler()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := h.Handle(ctx, workflow.Checkpoint{RunID: "run-1"})
		errCh <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.Pending() == nil {
		if time.Now().After(deadline) {
			t.Fatal("checkpoint never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Handle() error = %v, want context.Canceled", err)
	}

	// A decision after cancellation has nobody to receive it.
	sendCtx, sendCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer sendCancel()
	err := h.SetDecision(sendCtx, workflow.Decision{Action: workflow.Approve})
	if err == nil {
		t.Error("SetDecision() after cancellation should fail")
	}
}
