package llm

import (
	"context"
	"sync"
)

// MockClient is a test implementation of Client.
//
// Responses are returned in order; once exhausted, the last one repeats.
// Err, when set, is returned by every call instead of a response. All calls
// are recorded in Calls for assertion. Safe for concurrent use.
type MockClient struct {
	// Responses is the sequence of raw text responses. CompleteJSON runs
	// each through ExtractJSON, so JSON-valued entries behave like a real
	// backend in JSON mode.
	Responses []string

	// Err, if set, is returned by every call.
	Err error

	// Calls records every invocation.
	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records a single Complete or CompleteJSON invocation.
type MockCall struct {
	System string
	User   string
	JSON   bool
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	return m.next(ctx, systemPrompt, userMessage, false)
}

// CompleteJSON implements Client.
func (m *MockClient) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]any) (map[string]any, error) {
	text, err := m.next(ctx, systemPrompt, userMessage, true)
	if err != nil {
		return nil, err
	}
	return ExtractJSON(text)
}

func (m *MockClient) next(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{System: system, User: user, JSON: jsonMode})

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// CallCount returns how many times the mock has been invoked.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears call history and restarts the response sequence.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}
