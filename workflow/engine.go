package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/paperflow/emit"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/skill"
)

// DefaultMaxIterations bounds the search-feedback loop.
const DefaultMaxIterations = 5

// Phase names the engine's position within an iteration, reported through
// the progress callback.
type Phase string

const (
	PhaseQueryBuilding     Phase = "query_building"
	PhaseSearching         Phase = "searching"
	PhaseDeduplicating     Phase = "deduplicating"
	PhaseScoring           Phase = "scoring"
	PhaseOrganizing        Phase = "organizing"
	PhaseWaitingCheckpoint Phase = "waiting_checkpoint"
)

// ProgressFunc receives phase transitions as the run advances.
type ProgressFunc func(phase Phase, details string)

// Engine executes the full pipeline for one query at a time.
type Engine struct {
	intentParser *skill.IntentParser
	queryBuilder *skill.QueryBuilder
	searcher     *skill.Searcher
	deduplicator *skill.Deduplicator
	scorer       *skill.RelevanceScorer
	organizer    *skill.Organizer

	handler            Handler
	maxIterations      int
	strategyCheckpoint bool
	emitter            emit.Emitter
	metrics            *PrometheusMetrics
	progress           ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine) error

// WithHandler installs the decider. Without one the engine auto-approves
// after the first iteration.
func WithHandler(h Handler) Option {
	return func(e *Engine) error {
		e.handler = h
		return nil
	}
}

// WithMaxIterations overrides the iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("workflow: max iterations must be >= 1, got %d", n)
		}
		e.maxIterations = n
		return nil
	}
}

// WithStrategyCheckpoint enables the STRATEGY_CONFIRMATION pause before each
// search. Has no effect without a handler.
func WithStrategyCheckpoint(enabled bool) Option {
	return func(e *Engine) error {
		e.strategyCheckpoint = enabled
		return nil
	}
}

// WithEmitter routes observability events to emitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(e *Engine) error {
		if emitter == nil {
			return errors.New("workflow: emitter must not be nil")
		}
		e.emitter = emitter
		return nil
	}
}

// WithMetrics installs Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithProgress installs a phase transition callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) error {
		e.progress = fn
		return nil
	}
}

// New assembles an Engine from the six stages.
func New(
	intentParser *skill.IntentParser,
	queryBuilder *skill.QueryBuilder,
	searcher *skill.Searcher,
	deduplicator *skill.Deduplicator,
	scorer *skill.RelevanceScorer,
	organizer *skill.Organizer,
	opts ...Option,
) (*Engine, error) {
	if intentParser == nil || queryBuilder == nil || searcher == nil ||
		deduplicator == nil || scorer == nil || organizer == nil {
		return nil, errors.New("workflow: all six stages are required")
	}
	e := &Engine{
		intentParser:  intentParser,
		queryBuilder:  queryBuilder,
		searcher:      searcher,
		deduplicator:  deduplicator,
		scorer:        scorer,
		organizer:     organizer,
		maxIterations: DefaultMaxIterations,
		emitter:       emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Run executes the pipeline for userInput until the decider approves or the
// iteration ceiling is reached. Intent parse failures, decider errors, and
// cancellation abort the run; everything else degrades inside its stage.
func (e *Engine) Run(ctx context.Context, userInput string) (paper.PaperCollection, error) {
	runID := uuid.NewString()
	e.metrics.runStarted()
	e.emitter.Emit(emit.Event{RunID: runID, Msg: "run_start", Meta: map[string]any{"query": userInput}})

	coll, err := e.run(ctx, runID, userInput)
	if err != nil {
		e.metrics.runFinished("error")
		e.emitter.Emit(emit.Event{RunID: runID, Msg: "run_error", Meta: map[string]any{"error": err.Error()}})
		return paper.PaperCollection{}, err
	}
	e.metrics.runFinished("success")
	e.emitter.Emit(emit.Event{RunID: runID, Msg: "run_complete", Meta: map[string]any{"paper_count": len(coll.Papers)}})
	return coll, nil
}

func (e *Engine) run(ctx context.Context, runID, userInput string) (paper.PaperCollection, error) {
	state := &WorkflowState{}

	intent, err := e.intentParser.Parse(ctx, userInput)
	if err != nil {
		return paper.PaperCollection{}, fmt.Errorf("parse intent: %w", err)
	}

	var lastCollection paper.PaperCollection
	lastCollection.Metadata.Query = userInput

	for state.CurrentIteration < e.maxIterations {
		iteration := state.CurrentIteration

		e.report(PhaseQueryBuilding, "")
		strategy, err := e.timedStrategy(ctx, runID, iteration, paper.QueryBuilderInput{
			Intent:             intent,
			PreviousStrategies: state.PreviousStrategies(),
			UserFeedback:       state.LatestFeedback(),
		})
		if err != nil {
			return paper.PaperCollection{}, err
		}

		if e.strategyCheckpoint && e.handler != nil {
			decision, err := e.confirm(ctx, Checkpoint{
				Kind:      StrategyConfirmation,
				RunID:     runID,
				Iteration: iteration,
				Timestamp: time.Now().UTC(),
				Strategy:  &StrategyPayload{Intent: intent, Strategy: strategy},
			})
			if err != nil {
				return paper.PaperCollection{}, err
			}
			switch decision.Action {
			case Edit:
				revised, err := paper.DecodeStrategy(decision.RevisedData)
				if err != nil {
					return paper.PaperCollection{}, fmt.Errorf("revised strategy: %w", err)
				}
				strategy = revised
			case Reject:
				feedback := coerceFeedback(decision)
				state.Record(strategy, 0, &feedback)
				e.metrics.iterationDone()
				continue
			}
		}

		coll, err := e.executeSearch(ctx, runID, iteration, userInput, intent, strategy)
		if err != nil {
			return paper.PaperCollection{}, err
		}
		lastCollection = coll

		decision := Decision{Action: Approve}
		if e.handler != nil {
			decision, err = e.confirm(ctx, Checkpoint{
				Kind:      ResultReview,
				RunID:     runID,
				Iteration: iteration,
				Timestamp: time.Now().UTC(),
				Result: &ResultPayload{
					Collection:  coll,
					Accumulated: state.AccumulatedPapers,
				},
			})
			if err != nil {
				return paper.PaperCollection{}, err
			}
		}

		if decision.Action == Approve {
			state.Record(strategy, len(coll.Papers), nil)
			state.IsComplete = true
			e.metrics.iterationDone()
			return state.MergeAccumulated(coll), nil
		}

		feedback := coerceFeedback(decision)
		state.Accumulate(coll, feedback)
		state.Record(strategy, len(coll.Papers), &feedback)
		e.metrics.iterationDone()
	}

	// Ceiling reached: the last results still carry anything the decider
	// marked relevant along the way.
	state.IsComplete = true
	return state.MergeAccumulated(lastCollection), nil
}

// executeSearch runs the search, dedup, score, organize stages for one
// iteration.
func (e *Engine) executeSearch(ctx context.Context, runID string, iteration int, userInput string, intent paper.ParsedIntent, strategy paper.SearchStrategy) (paper.PaperCollection, error) {
	e.report(PhaseSearching, "")
	var raw []paper.RawPaper
	err := e.timed(runID, iteration, "search", func() error {
		var err error
		raw, err = e.searcher.Search(ctx, runID, iteration, strategy)
		return err
	})
	if err != nil {
		return paper.PaperCollection{}, fmt.Errorf("search: %w", err)
	}

	e.report(PhaseDeduplicating, fmt.Sprintf("%d papers found", len(raw)))
	var deduped []paper.RawPaper
	err = e.timed(runID, iteration, "dedup", func() error {
		var err error
		deduped, err = e.deduplicator.Deduplicate(ctx, raw)
		return err
	})
	if err != nil {
		return paper.PaperCollection{}, fmt.Errorf("deduplicate: %w", err)
	}

	e.report(PhaseScoring, fmt.Sprintf("%d unique papers", len(deduped)))
	var scored []paper.ScoredPaper
	err = e.timed(runID, iteration, "score", func() error {
		var err error
		scored, err = e.scorer.Score(ctx, intent, deduped)
		return err
	})
	if err != nil {
		return paper.PaperCollection{}, fmt.Errorf("score: %w", err)
	}

	e.report(PhaseOrganizing, "")
	var coll paper.PaperCollection
	_ = e.timed(runID, iteration, "organize", func() error {
		coll = e.organizer.Organize(userInput, strategy, scored)
		return nil
	})
	return coll, nil
}

// confirm hands a checkpoint to the decider and records the verdict.
func (e *Engine) confirm(ctx context.Context, ckpt Checkpoint) (Decision, error) {
	e.report(PhaseWaitingCheckpoint, string(ckpt.Kind))
	e.emitter.Emit(emit.Event{
		RunID:     ckpt.RunID,
		Iteration: ckpt.Iteration,
		Stage:     "checkpoint",
		Msg:       "checkpoint_wait",
		Meta:      map[string]any{"kind": string(ckpt.Kind), "checkpoint_id": ckpt.ID()},
	})

	decision, err := e.handler.Handle(ctx, ckpt)
	if err != nil {
		return Decision{}, fmt.Errorf("checkpoint %s: %w", ckpt.Signature(), err)
	}

	e.metrics.decisionMade(ckpt.Kind, decision.Action)
	e.emitter.Emit(emit.Event{
		RunID:     ckpt.RunID,
		Iteration: ckpt.Iteration,
		Stage:     "checkpoint",
		Msg:       "checkpoint_decision",
		Meta:      map[string]any{"kind": string(ckpt.Kind), "action": string(decision.Action)},
	})
	return decision, nil
}

func (e *Engine) timedStrategy(ctx context.Context, runID string, iteration int, input paper.QueryBuilderInput) (paper.SearchStrategy, error) {
	var strategy paper.SearchStrategy
	err := e.timed(runID, iteration, "query_build", func() error {
		var err error
		strategy, err = e.queryBuilder.Build(ctx, input)
		return err
	})
	if err != nil {
		return paper.SearchStrategy{}, fmt.Errorf("build strategy: %w", err)
	}
	return strategy, nil
}

// timed wraps one stage with start/end events and the latency metric.
func (e *Engine) timed(runID string, iteration int, stage string, fn func() error) error {
	e.emitter.Emit(emit.Event{RunID: runID, Iteration: iteration, Stage: stage, Msg: "stage_start"})
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	status := "success"
	meta := map[string]any{"duration_ms": elapsed.Milliseconds()}
	if err != nil {
		status = "error"
		meta["error"] = err.Error()
	}
	e.metrics.observeStage(stage, status, elapsed)
	e.emitter.Emit(emit.Event{RunID: runID, Iteration: iteration, Stage: stage, Msg: "stage_end", Meta: meta})
	return err
}

func (e *Engine) report(phase Phase, details string) {
	if e.progress != nil {
		e.progress(phase, details)
	}
}

// coerceFeedback interprets a non-approve decision as user feedback: a
// UserFeedback-shaped RevisedData wins, anything else becomes free text from
// the note.
func coerceFeedback(decision Decision) paper.UserFeedback {
	if decision.RevisedData != nil {
		if fb, err := paper.DecodeFeedback(decision.RevisedData); err == nil {
			return fb
		}
	}
	return paper.UserFeedback{FreeTextFeedback: decision.Note}
}
