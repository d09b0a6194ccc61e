package skill

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dshills/paperflow/emit"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/source"
)

// fakeSource is a scripted source.Source.
type fakeSource struct {
	name   string
	papers []paper.RawPaper
	err    error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, opts source.SearchOptions) ([]paper.RawPaper, error) {
	return f.papers, f.err
}

func (f *fakeSource) SearchAdvanced(ctx context.Context, strategy paper.SearchStrategy) ([]paper.RawPaper, error) {
	return f.papers, f.err
}

func rawPapers(prefix string, n int) []paper.RawPaper {
	papers := make([]paper.RawPaper, n)
	for i := range papers {
		papers[i] = paper.RawPaper{
			ID:    fmt.Sprintf("%s-%d", prefix, i),
			Title: fmt.Sprintf("%s paper %d", prefix, i),
		}
	}
	return papers
}

func strategyFor(sources ...string) paper.SearchStrategy {
	return paper.SearchStrategy{
		Queries: []paper.SearchQuery{{BooleanQuery: "q"}},
		Sources: sources,
	}
}

func TestSearchFanOut(t *testing.T) {
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha", papers: rawPapers("a", 2)},
		&fakeSource{name: "beta", papers: rawPapers("b", 3)},
	}, nil)

	papers, err := searcher.Search(context.Background(), "run-1", 0, strategyFor("alpha", "beta"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 5 {
		t.Errorf("got %d papers, want 5 merged from both sources", len(papers))
	}
}

func TestSearchDropsFailingSource(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha", papers: rawPapers("a", 2)},
		&fakeSource{name: "beta", err: errors.New("provider down")},
	}, buf)

	papers, err := searcher.Search(context.Background(), "run-1", 1, strategyFor("alpha", "beta"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("got %d papers, want the healthy source's 2", len(papers))
	}

	events := buf.GetHistoryWithFilter("run-1", emit.HistoryFilter{Msg: "source_error"})
	if len(events) != 1 || events[0].Meta["source"] != "beta" {
		t.Errorf("source_error events = %+v", events)
	}
}

func TestSearchUnknownSource(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha", papers: rawPapers("a", 1)},
	}, buf)

	papers, err := searcher.Search(context.Background(), "run-1", 0, strategyFor("alpha", "ghost"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 1 {
		t.Errorf("got %d papers", len(papers))
	}
	events := buf.GetHistoryWithFilter("run-1", emit.HistoryFilter{Msg: "source_unknown"})
	if len(events) != 1 || events[0].Meta["source"] != "ghost" {
		t.Errorf("source_unknown events = %+v", events)
	}
}

func TestSearchFallsBackToRegistry(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha", papers: rawPapers("a", 2)},
		&fakeSource{name: "beta", papers: rawPapers("b", 1)},
	}, buf)

	// No strategy source resolves, so every registered source is searched.
	papers, err := searcher.Search(context.Background(), "run-1", 0, strategyFor("ghost"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(papers) != 3 {
		t.Errorf("got %d papers, want 3 from the full registry", len(papers))
	}
	events := buf.GetHistoryWithFilter("run-1", emit.HistoryFilter{Msg: "source_unknown"})
	if len(events) != 1 || events[0].Meta["source"] != "ghost" {
		t.Errorf("source_unknown events = %+v", events)
	}
}

func TestSearchTotalFailureReturnsEmpty(t *testing.T) {
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha", err: errors.New("down")},
	}, nil)

	papers, err := searcher.Search(context.Background(), "run-1", 0, strategyFor("alpha"))
	if err != nil {
		t.Fatalf("Search() error = %v, want failures dropped", err)
	}
	if len(papers) != 0 {
		t.Errorf("got %d papers, want 0", len(papers))
	}
}

func TestSearchEmptyResultsIsNotFailure(t *testing.T) {
	searcher := NewSearcher([]source.Source{
		&fakeSource{name: "alpha"},
		&fakeSource{name: "beta", err: errors.New("down")},
	}, nil)

	papers, err := searcher.Search(context.Background(), "run-1", 0, strategyFor("alpha", "beta"))
	if err != nil {
		t.Fatalf("Search() error = %v; one source succeeded with zero results", err)
	}
	if len(papers) != 0 {
		t.Errorf("got %d papers, want 0", len(papers))
	}
}

func TestSearchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := NewSearcher([]source.Source{&fakeSource{name: "alpha"}}, nil)
	_, err := searcher.Search(ctx, "run-1", 0, strategyFor("alpha"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
