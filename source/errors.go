package source

import "fmt"

// RetryableError marks a transient provider failure (HTTP 429/500/503 or a
// transport timeout) that has already been retried up to the adapter's limit.
type RetryableError struct {
	Message string
	Err     error
}

func (e *RetryableError) Error() string { return "source: " + e.Message }

func (e *RetryableError) Unwrap() error { return e.Err }

// PermanentError marks a failure retrying cannot fix, such as HTTP 401/403.
type PermanentError struct {
	Message string
}

func (e *PermanentError) Error() string { return "source: " + e.Message }

// APIError is a provider-level error delivered inside an HTTP 200 response.
// Treated as permanent.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "source: provider error: " + e.Message }

// CallLimitError means the adapter's per-run request budget is exhausted.
type CallLimitError struct {
	Limit int
}

func (e *CallLimitError) Error() string {
	return fmt.Sprintf("source: call budget of %d requests exhausted", e.Limit)
}
