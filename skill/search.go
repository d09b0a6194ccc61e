package skill

import (
	"context"
	"sync"

	"github.com/dshills/paperflow/emit"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/source"
)

// Searcher fans a strategy out to its named sources concurrently and merges
// the results.
type Searcher struct {
	registry map[string]source.Source
	emitter  emit.Emitter
}

// NewSearcher creates a Searcher over the given sources, keyed by Name().
// A nil emitter defaults to the null emitter.
func NewSearcher(sources []source.Source, emitter emit.Emitter) *Searcher {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	registry := make(map[string]source.Source, len(sources))
	for _, s := range sources {
		registry[s.Name()] = s
	}
	return &Searcher{registry: registry, emitter: emitter}
}

// SourceNames lists the registered source names.
func (s *Searcher) SourceNames() []string {
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	return names
}

// Search executes strategy against each of its sources in parallel. Unknown
// source names and per-source failures are reported through the emitter and
// dropped; partial success is returned, and even total failure yields an
// empty result rather than an error. When none of the strategy's source
// names are registered the search falls back to every registered source.
// Only ctx cancellation fails the call.
func (s *Searcher) Search(ctx context.Context, runID string, iteration int, strategy paper.SearchStrategy) ([]paper.RawPaper, error) {
	var targets []source.Source
	for _, name := range strategy.Sources {
		src, ok := s.registry[name]
		if !ok {
			s.emitter.Emit(emit.Event{
				RunID:     runID,
				Iteration: iteration,
				Stage:     "search",
				Msg:       "source_unknown",
				Meta:      map[string]any{"source": name},
			})
			continue
		}
		targets = append(targets, src)
	}
	if len(targets) == 0 {
		for _, src := range s.registry {
			targets = append(targets, src)
		}
	}

	type sourceResult struct {
		papers []paper.RawPaper
		err    error
	}

	results := make([]sourceResult, len(targets))
	var wg sync.WaitGroup
	for i, src := range targets {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			papers, err := src.SearchAdvanced(ctx, strategy)
			results[i] = sourceResult{papers: papers, err: err}
		}(i, src)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var merged []paper.RawPaper
	for i, res := range results {
		if res.err != nil {
			s.emitter.Emit(emit.Event{
				RunID:     runID,
				Iteration: iteration,
				Stage:     "search",
				Msg:       "source_error",
				Meta: map[string]any{
					"source": targets[i].Name(),
					"error":  res.err.Error(),
				},
			})
			continue
		}
		merged = append(merged, res.papers...)
	}
	return merged, nil
}
