package paper

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalid wraps all decode/validation failures in this package so callers
// can branch on them with errors.Is.
var ErrInvalid = errors.New("invalid value")

// DecodeIntent converts a generic JSON mapping into a validated ParsedIntent.
func DecodeIntent(data map[string]any) (ParsedIntent, error) {
	var intent ParsedIntent
	if err := remarshal(data, &intent); err != nil {
		return ParsedIntent{}, err
	}
	if err := ValidateIntent(intent); err != nil {
		return ParsedIntent{}, err
	}
	return intent, nil
}

// ValidateIntent enforces the ParsedIntent invariants: non-empty topic and
// concepts, known intent type, ordered year range.
func ValidateIntent(intent ParsedIntent) error {
	if intent.Topic == "" {
		return fmt.Errorf("%w: intent topic is empty", ErrInvalid)
	}
	if len(intent.Concepts) == 0 {
		return fmt.Errorf("%w: intent has no concepts", ErrInvalid)
	}
	if !intent.IntentType.Valid() {
		return fmt.Errorf("%w: unknown intent type %q", ErrInvalid, intent.IntentType)
	}
	c := intent.Constraints
	if c.YearFrom != 0 && c.YearTo != 0 && c.YearFrom > c.YearTo {
		return fmt.Errorf("%w: year_from %d after year_to %d", ErrInvalid, c.YearFrom, c.YearTo)
	}
	return nil
}

// DecodeStrategy converts a generic JSON mapping into a SearchStrategy.
// Structural validation only; sanitization (source intersection, year swap,
// clamping) is the query builder's job.
func DecodeStrategy(data map[string]any) (SearchStrategy, error) {
	var strategy SearchStrategy
	if err := remarshal(data, &strategy); err != nil {
		return SearchStrategy{}, err
	}
	for i, q := range strategy.Queries {
		if q.BooleanQuery == "" {
			return SearchStrategy{}, fmt.Errorf("%w: query %d has empty boolean_query", ErrInvalid, i)
		}
	}
	return strategy, nil
}

// DecodeFeedback converts a generic JSON mapping into UserFeedback.
// Fails when relevant and irrelevant sets overlap.
func DecodeFeedback(data map[string]any) (UserFeedback, error) {
	var fb UserFeedback
	if err := remarshal(data, &fb); err != nil {
		return UserFeedback{}, err
	}
	irrelevant := make(map[string]bool, len(fb.MarkedIrrelevant))
	for _, id := range fb.MarkedIrrelevant {
		irrelevant[id] = true
	}
	for _, id := range fb.MarkedRelevant {
		if irrelevant[id] {
			return UserFeedback{}, fmt.Errorf("%w: paper %q marked both relevant and irrelevant", ErrInvalid, id)
		}
	}
	return fb, nil
}

// remarshal round-trips data through JSON into dst, rejecting unknown field
// shapes the way a schema validator would reject type mismatches.
func remarshal(data map[string]any, dst any) error {
	if data == nil {
		return fmt.Errorf("%w: nil mapping", ErrInvalid)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
