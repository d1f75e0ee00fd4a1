package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bdobrica/aether/common/trace"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/observability"
)

// Store is the slice of the persistence layer the archivist needs.
type Store interface {
	ListFragments(ctx context.Context, charID string) ([]Fragment, error)
	AppendFragments(ctx context.Context, charID string, fragments []Fragment) error
	GetRefinedIndex(ctx context.Context, charID string) (RefinedIndex, error)
	SetRefinedEntry(ctx context.Context, charID, key, summary string) error
}

// Recorder receives archivist outcomes for metrics.
type Recorder interface {
	ObserveRefine(outcome string)
	ObserveImport(outcome string, fragments int)
}

// Archivist ties the tree, refinement and import logic to a store and a
// summarizer. Refinement is only ever triggered explicitly; nothing here
// re-refines a month when its fragments change.
type Archivist struct {
	store      Store
	summarizer llm.Summarizer
	recorder   Recorder
	logger     *slog.Logger
}

// NewArchivist creates an Archivist. A nil logger falls back to slog.Default.
func NewArchivist(store Store, summarizer llm.Summarizer, logger *slog.Logger) *Archivist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archivist{store: store, summarizer: summarizer, logger: logger}
}

// SetRecorder attaches a metrics recorder.
func (a *Archivist) SetRecorder(r Recorder) { a.recorder = r }

// Tree loads a character's fragments and builds the memory tree.
func (a *Archivist) Tree(ctx context.Context, charID string) (Tree, Stats, error) {
	fragments, err := a.store.ListFragments(ctx, charID)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("memory: list fragments: %w", err)
	}
	tree, stats := BuildTree(fragments)
	return tree, stats, nil
}

// Refine summarises one month of a character's fragments and stores the
// result under "YYYY-MM", replacing any earlier summary for that key. On
// error nothing is stored.
func (a *Archivist) Refine(ctx context.Context, charID, year, month string) (key, summary string, err error) {
	key = MonthKey(year, month)
	ctx, _ = trace.Ensure(ctx)
	logger := observability.WithTrace(ctx, a.logger).With("character_id", charID, "key", key)
	defer func() { a.observeRefine(logger, err) }()

	tree, _, err := a.Tree(ctx, charID)
	if err != nil {
		return key, "", err
	}

	summary, err = RefineMonth(ctx, a.summarizer, year, padMonth(month), tree.Month(year, padMonth(month)))
	if err != nil {
		return key, "", err
	}

	if err := a.store.SetRefinedEntry(ctx, charID, key, summary); err != nil {
		return key, "", fmt.Errorf("memory: store refined %s: %w", key, err)
	}

	logger.Info("memory: month refined", "summary_len", len(summary))
	return key, summary, nil
}

// Import extracts fragments from free-form text and appends them to the
// character's existing fragments.
func (a *Archivist) Import(ctx context.Context, charID, text string) ([]Fragment, error) {
	ctx, _ = trace.Ensure(ctx)
	logger := observability.WithTrace(ctx, a.logger).With("character_id", charID)

	fragments, err := ImportFragments(ctx, a.summarizer, text)
	if err != nil {
		a.observeImport(logger, err, 0)
		return nil, err
	}

	if err := a.store.AppendFragments(ctx, charID, fragments); err != nil {
		err = fmt.Errorf("memory: append imported fragments: %w", err)
		a.observeImport(logger, err, 0)
		return nil, err
	}

	a.observeImport(logger, nil, len(fragments))
	logger.Info("memory: fragments imported", "count", len(fragments))
	return fragments, nil
}

func (a *Archivist) observeRefine(logger *slog.Logger, err error) {
	if a.recorder != nil {
		a.recorder.ObserveRefine(outcome(err))
	}
	if err != nil {
		logger.Warn("memory: refine failed", "err", err)
	}
}

func (a *Archivist) observeImport(logger *slog.Logger, err error, n int) {
	if a.recorder != nil {
		a.recorder.ObserveImport(outcome(err), n)
	}
	if err != nil {
		logger.Warn("memory: import failed", "err", err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyMonth), errors.Is(err, ErrEmptyInput):
		return "invalid"
	case errors.Is(err, llm.ErrConfiguration), errors.Is(err, llm.ErrTransport), errors.Is(err, llm.ErrParse):
		return llm.Outcome(err)
	default:
		return "error"
	}
}
