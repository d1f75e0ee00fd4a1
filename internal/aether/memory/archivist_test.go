package memory_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bdobrica/aether/common/trace"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
)

type memStore struct {
	mu        sync.Mutex
	fragments map[string][]memory.Fragment
	refined   map[string]memory.RefinedIndex
	sets      int
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		fragments: map[string][]memory.Fragment{},
		refined:   map[string]memory.RefinedIndex{},
	}
}

func (s *memStore) ListFragments(_ context.Context, id string) ([]memory.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.Fragment(nil), s.fragments[id]...), nil
}

func (s *memStore) AppendFragments(_ context.Context, id string, f []memory.Fragment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.fragments[id] = append(s.fragments[id], f...)
	return nil
}

func (s *memStore) GetRefinedIndex(_ context.Context, id string) (memory.RefinedIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := memory.RefinedIndex{}
	for k, v := range s.refined[id] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SetRefinedEntry(_ context.Context, id, key, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.refined[id] == nil {
		s.refined[id] = memory.RefinedIndex{}
	}
	s.refined[id][key] = summary
	return nil
}

type outcomeRecorder struct {
	refines []string
	imports []string
	counts  []int
}

func (r *outcomeRecorder) ObserveRefine(outcome string) { r.refines = append(r.refines, outcome) }
func (r *outcomeRecorder) ObserveImport(outcome string, n int) {
	r.imports = append(r.imports, outcome)
	r.counts = append(r.counts, n)
}

func TestArchivist_RefineStoresAndOverwrites(t *testing.T) {
	st := newMemStore()
	st.fragments["mika"] = []memory.Fragment{{Date: "2023-05-01", Summary: "A", Mood: "happy"}}
	sum := &fakeSummarizer{reply: "first"}
	rec := &outcomeRecorder{}
	a := memory.NewArchivist(st, sum, nil)
	a.SetRecorder(rec)
	ctx := context.Background()

	key, summary, err := a.Refine(ctx, "mika", "2023", "5")
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if key != "2023-05" || summary != "first" {
		t.Errorf("Refine = (%q, %q)", key, summary)
	}

	sum.reply = "second"
	if _, _, err := a.Refine(ctx, "mika", "2023", "05"); err != nil {
		t.Fatalf("second Refine: %v", err)
	}

	idx, _ := st.GetRefinedIndex(ctx, "mika")
	if len(idx) != 1 || idx["2023-05"] != "second" {
		t.Errorf("refined index = %v, want a single overwritten entry", idx)
	}
	if len(rec.refines) != 2 || rec.refines[0] != "ok" {
		t.Errorf("recorded outcomes = %v", rec.refines)
	}
}

func TestArchivist_TraceID(t *testing.T) {
	st := newMemStore()
	st.fragments["mika"] = []memory.Fragment{{Date: "2023-05-01", Summary: "A"}}

	t.Run("caller trace", func(t *testing.T) {
		var buf bytes.Buffer
		sum := &fakeSummarizer{reply: "summary"}
		a := memory.NewArchivist(st, sum, slog.New(slog.NewTextHandler(&buf, nil)))

		ctx := trace.WithTraceID(context.Background(), "t_abc")
		if _, _, err := a.Refine(ctx, "mika", "2023", "05"); err != nil {
			t.Fatalf("Refine: %v", err)
		}
		if sum.traceID != "t_abc" {
			t.Errorf("summarizer trace = %q, want t_abc", sum.traceID)
		}
		if !strings.Contains(buf.String(), "trace_id=t_abc") {
			t.Errorf("refine log missing trace id:\n%s", buf.String())
		}
	})

	t.Run("fresh trace", func(t *testing.T) {
		var buf bytes.Buffer
		sum := &fakeSummarizer{reply: plainPayload}
		a := memory.NewArchivist(st, sum, slog.New(slog.NewTextHandler(&buf, nil)))

		if _, err := a.Import(context.Background(), "mika", "we met in May"); err != nil {
			t.Fatalf("Import: %v", err)
		}
		if !strings.HasPrefix(sum.traceID, trace.Prefix) {
			t.Fatalf("summarizer trace = %q, want a generated id", sum.traceID)
		}
		if !strings.Contains(buf.String(), "trace_id="+sum.traceID) {
			t.Errorf("import log does not share the summarizer trace %s:\n%s", sum.traceID, buf.String())
		}
	})
}

func TestArchivist_RefineFailureStoresNothing(t *testing.T) {
	st := newMemStore()
	st.fragments["mika"] = []memory.Fragment{{Date: "2023-05-01", Summary: "A"}}
	rec := &outcomeRecorder{}
	a := memory.NewArchivist(st, &fakeSummarizer{err: llm.ErrTransport}, nil)
	a.SetRecorder(rec)

	_, _, err := a.Refine(context.Background(), "mika", "2023", "05")
	if !errors.Is(err, llm.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if st.sets != 0 {
		t.Error("refined entry stored despite failure")
	}
	if rec.refines[0] != "transport" {
		t.Errorf("outcome = %q, want transport", rec.refines[0])
	}
}

func TestArchivist_RefineEmptyMonth(t *testing.T) {
	st := newMemStore()
	st.fragments["mika"] = []memory.Fragment{{Date: "2023-06-01", Summary: "A"}}
	rec := &outcomeRecorder{}
	a := memory.NewArchivist(st, &fakeSummarizer{reply: "x"}, nil)
	a.SetRecorder(rec)

	_, _, err := a.Refine(context.Background(), "mika", "2023", "05")
	if !errors.Is(err, memory.ErrEmptyMonth) {
		t.Fatalf("err = %v, want ErrEmptyMonth", err)
	}
	if rec.refines[0] != "invalid" {
		t.Errorf("outcome = %q, want invalid", rec.refines[0])
	}
}

func TestArchivist_ImportAppends(t *testing.T) {
	st := newMemStore()
	st.fragments["mika"] = []memory.Fragment{{ID: "old", Date: "2020-01-01", Summary: "old"}}
	rec := &outcomeRecorder{}
	a := memory.NewArchivist(st, &fakeSummarizer{reply: plainPayload}, nil)
	a.SetRecorder(rec)
	ctx := context.Background()

	got, err := a.Import(ctx, "mika", "some diary")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("imported %d, want 2", len(got))
	}
	all, _ := st.ListFragments(ctx, "mika")
	if len(all) != 3 || all[0].ID != "old" {
		t.Errorf("fragments after import = %+v", all)
	}
	if rec.imports[0] != "ok" || rec.counts[0] != 2 {
		t.Errorf("recorded = %v %v", rec.imports, rec.counts)
	}

	tree, stats, err := a.Tree(ctx, "mika")
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if stats.Count != 3 || len(tree) != 2 {
		t.Errorf("tree = %+v, stats = %+v", tree, stats)
	}
}

func TestArchivist_ImportParseFailure(t *testing.T) {
	st := newMemStore()
	rec := &outcomeRecorder{}
	a := memory.NewArchivist(st, &fakeSummarizer{reply: "no idea"}, nil)
	a.SetRecorder(rec)

	_, err := a.Import(context.Background(), "mika", "text")
	if !errors.Is(err, llm.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if len(st.fragments["mika"]) != 0 {
		t.Error("fragments appended despite parse failure")
	}
	if rec.imports[0] != "parse" {
		t.Errorf("outcome = %q, want parse", rec.imports[0])
	}
}

func TestArchivist_ImportStoreFailure(t *testing.T) {
	st := newMemStore()
	st.appendErr = errors.New("disk full")
	a := memory.NewArchivist(st, &fakeSummarizer{reply: plainPayload}, nil)

	if _, err := a.Import(context.Background(), "mika", "text"); err == nil {
		t.Fatal("expected error from store")
	}
}
