package llm

import (
	"context"
	"errors"
	"strings"
)

// WrapProviderError normalizes an SDK failure into the shared taxonomy.
//
// The three backend SDKs expose incompatible error types, so classification
// matches on status codes and well-known phrases in the error text. Context
// cancellation passes through untouched so callers can unwind cleanly.
func WrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())

	for _, pattern := range authPatterns {
		if strings.Contains(msg, pattern) {
			return &AuthError{Provider: provider, Err: err}
		}
	}
	for _, pattern := range ratePatterns {
		if strings.Contains(msg, pattern) {
			return &RateLimitError{Provider: provider, Err: err}
		}
	}
	return &Error{Provider: provider, Message: err.Error(), Err: err}
}

var authPatterns = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid api key",
	"incorrect api key",
	"authentication",
	"permission denied",
}

var ratePatterns = []string{
	"429",
	"rate limit",
	"too many requests",
	"resource_exhausted",
	"resource exhausted",
}
