// Package emit provides pluggable observability for pipeline runs.
//
// The workflow engine emits an Event at every stage boundary, checkpoint,
// and error. Emitters route those events to a backend: a log writer, an
// in-memory buffer, OpenTelemetry spans, or nothing at all.
package emit

// Event represents an observability event emitted during a pipeline run.
type Event struct {
	// RunID identifies the pipeline run that emitted this event.
	RunID string

	// Iteration is the search iteration the event belongs to (1-indexed).
	// Zero for run-level events (run_start, run_complete, run_error).
	Iteration int

	// Stage names the pipeline stage that emitted this event
	// (e.g. "intent_parse", "search", "score"). Empty for run-level events.
	Stage string

	// Msg is a short machine-matchable description of the event
	// (e.g. "stage_start", "stage_end", "checkpoint_wait", "error").
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": stage duration in milliseconds
	//   - "error": error details
	//   - "paper_count": papers flowing out of a stage
	//   - "checkpoint_id": checkpoint identifier
	//   - "degraded": whether a stage fell back to a non-LLM path
	Meta map[string]any
}

// Emitter receives observability events from pipeline execution.
//
// Implementations must be safe for concurrent use and must not panic;
// a failing backend should drop events rather than disturb the run.
type Emitter interface {
	Emit(event Event)
}
