package llm

import "fmt"

// Error is the generic model-backend failure. AuthError, RateLimitError and
// ResponseError specialize it; everything else from a backend is wrapped in
// a plain Error.
type Error struct {
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("llm(%s): %s", e.Provider, e.Message)
	}
	return "llm: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// AuthError is an authentication or authorization failure. Fatal per run;
// no stage fallback applies.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("llm(%s): authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError indicates the backend refused the request due to rate
// limiting. The client does not retry; callers decide.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm(%s): rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ResponseError means the backend answered but the answer was unusable,
// typically unparseable JSON. Raw holds a truncated prefix of the response
// for diagnostics.
type ResponseError struct {
	Message string
	Raw     string
}

const rawPrefixLen = 200

func (e *ResponseError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("llm: %s: %s", e.Message, e.Raw)
	}
	return "llm: " + e.Message
}

// newResponseError builds a ResponseError carrying at most rawPrefixLen
// bytes of the offending text.
func newResponseError(message, raw string) *ResponseError {
	if len(raw) > rawPrefixLen {
		raw = raw[:rawPrefixLen]
	}
	return &ResponseError{Message: message, Raw: raw}
}
