package catchup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/reconcile"
	"tableflip.dev/tock/pkg/store"
)

func clock(h, m int) time.Time {
	return time.Date(2026, time.June, 10, h, m, 0, 0, time.UTC)
}

func span(h1, m1, h2, m2 int) interval.Window {
	return interval.Window{Start: clock(h1, m1), End: clock(h2, m2)}
}

var grace = config.Grace{WindowDuration: 30 * time.Minute, LateGrace: 5 * time.Minute}

func seed(t *testing.T, windows ...interval.Window) *store.Memory {
	t.Helper()
	var entries []*entry.Entry
	for _, w := range windows {
		e, err := entry.New(w, "seeded", nil, w.End)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		entries = append(entries, e)
	}
	return store.NewMemory(entries...)
}

// flaky fails inserts for the listed window starts.
type flaky struct {
	store.Persistence
	mu    sync.Mutex
	fail  map[int64]bool
	calls int
}

func (f *flaky) Insert(ctx context.Context, e *entry.Entry) error {
	f.mu.Lock()
	f.calls++
	fail := f.fail[e.Window.Start.Unix()]
	f.mu.Unlock()
	if fail {
		return errors.Join(store.ErrUnavailable, errors.New("disk full"))
	}
	return f.Persistence.Insert(ctx, e)
}

func newSession(p store.Persistence, now time.Time) *Session {
	return &Session{Store: p, Grace: grace, Now: func() time.Time { return now }}
}

func missedCount(t *testing.T, p store.Persistence, now time.Time) int {
	t.Helper()
	all, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return len(reconcile.MissedSinceFirst(all, now, grace))
}

func TestApplyWritesOneEntryPerWindow(t *testing.T) {
	ctx := context.Background()
	now := clock(12, 10)
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, now)

	candidates, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// 09:30 through 11:30 are missed; 12:00 is current.
	if len(candidates) != 5 {
		t.Fatalf("expected 5 candidates, got %d: %v", len(candidates), candidates)
	}
	before := missedCount(t, p, now)

	s.Toggle(span(9, 30, 10, 0))
	s.Toggle(span(10, 30, 11, 0))
	res, err := s.Commit(ctx, "  planning  ")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(res.Succeeded) != 2 || !res.OK() || res.Total() != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, e := range res.Succeeded {
		if e.Text != "planning" {
			t.Fatalf("unexpected text %q", e.Text)
		}
		if len(e.Tags) != 0 {
			t.Fatalf("catch-up entries carry no tags, got %v", e.Tags)
		}
		if !e.LoggedAt.Equal(now) {
			t.Fatalf("expected loggedAt %s, got %s", now, e.LoggedAt)
		}
	}
	if !res.Succeeded[0].Window.Equal(span(9, 30, 10, 0)) {
		t.Fatalf("results not ordered oldest first")
	}

	after := missedCount(t, p, now)
	if before-after != 2 {
		t.Fatalf("missed count went from %d to %d, want a drop of 2", before, after)
	}
	if len(s.Selected()) != 0 {
		t.Fatalf("commit should end the session")
	}
}

func TestApplyPartialFailureKeepsFailedWindowsMissed(t *testing.T) {
	ctx := context.Background()
	now := clock(12, 10)
	mem := seed(t, span(9, 0, 9, 30))
	p := &flaky{Persistence: mem, fail: map[int64]bool{clock(10, 0).Unix(): true}}
	s := newSession(p, now)

	before := missedCount(t, p, now)
	selection := []interval.Window{span(9, 30, 10, 0), span(10, 0, 10, 30), span(10, 30, 11, 0)}
	res, err := s.Apply(ctx, selection, "reading")

	var pbe *PartialBatchError
	if !errors.As(err, &pbe) {
		t.Fatalf("expected PartialBatchError, got %v", err)
	}
	if !errors.Is(err, ErrPartialBatch) || !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("partial batch error should match the sentinel and the cause: %v", err)
	}
	if pbe.Succeeded != 2 || len(pbe.Failed) != 1 {
		t.Fatalf("unexpected counts: %d ok, %d failed", pbe.Succeeded, len(pbe.Failed))
	}
	if p.calls != 3 {
		t.Fatalf("every window should be attempted, got %d calls", p.calls)
	}
	if len(res.Succeeded) != 2 || len(res.Failed) != 1 || !res.Failed[0].Window.Equal(span(10, 0, 10, 30)) {
		t.Fatalf("unexpected result %+v", res)
	}

	after := missedCount(t, p, now)
	if before-after != 2 {
		t.Fatalf("missed count dropped by %d, want 2", before-after)
	}
	all, _ := p.FetchAll(ctx)
	if reconcile.NewIndex(all).Covered(span(10, 0, 10, 30)) {
		t.Fatalf("failed window must remain missed")
	}
}

func TestApplyRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	now := clock(12, 10)
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, now)

	if _, err := s.Apply(ctx, []interval.Window{span(9, 30, 10, 0)}, "   "); !errors.Is(err, entry.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := s.Apply(ctx, nil, "x"); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	for name, w := range map[string]interval.Window{
		"covered": span(9, 0, 9, 30),
		"current": span(12, 0, 12, 30),
		"future":  span(13, 0, 13, 30),
	} {
		if _, err := s.Apply(ctx, []interval.Window{span(9, 30, 10, 0), w}, "x"); !errors.Is(err, ErrNotMissed) {
			t.Fatalf("%s: expected ErrNotMissed, got %v", name, err)
		}
	}
	all, _ := p.FetchAll(ctx)
	if len(all) != 1 {
		t.Fatalf("rejected batches must not write, store has %d entries", len(all))
	}
}

func TestApplyDeduplicatesSelection(t *testing.T) {
	ctx := context.Background()
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, clock(12, 10))
	w := span(9, 30, 10, 0)
	res, err := s.Apply(ctx, []interval.Window{w, w, w.In(time.FixedZone("X", 3600))}, "x")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(res.Succeeded) != 1 {
		t.Fatalf("expected a single write, got %d", len(res.Succeeded))
	}
}

func TestApplyTwiceReportsNotMissed(t *testing.T) {
	ctx := context.Background()
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, clock(12, 10))
	w := []interval.Window{span(9, 30, 10, 0)}
	if _, err := s.Apply(ctx, w, "x"); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := s.Apply(ctx, w, "x"); !errors.Is(err, ErrNotMissed) {
		t.Fatalf("expected ErrNotMissed on second apply, got %v", err)
	}
}

func TestAbandonWritesNothing(t *testing.T) {
	ctx := context.Background()
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, clock(12, 10))
	if _, err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	s.SelectAll()
	if len(s.Selected()) == 0 {
		t.Fatal("expected a selection")
	}
	s.Abandon()
	if len(s.Selected()) != 0 || len(s.Candidates()) != 0 {
		t.Fatal("abandon should discard local state")
	}
	all, _ := p.FetchAll(ctx)
	if len(all) != 1 {
		t.Fatalf("abandoned session wrote %d entries", len(all)-1)
	}
}

func TestToggleIgnoresNonCandidates(t *testing.T) {
	ctx := context.Background()
	s := newSession(seed(t, span(9, 0, 9, 30)), clock(10, 10))
	if _, err := s.Begin(ctx); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if s.Toggle(span(9, 0, 9, 30)) {
		t.Fatal("covered window must not be selectable")
	}
	if !s.Toggle(span(9, 30, 10, 0)) {
		t.Fatal("missed window should be selectable")
	}
	if s.Toggle(span(9, 30, 10, 0)) {
		t.Fatal("second toggle should deselect")
	}
}

func TestApplyCancelledContextWritesNothing(t *testing.T) {
	p := seed(t, span(9, 0, 9, 30))
	s := newSession(p, clock(12, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Apply(ctx, []interval.Window{span(9, 30, 10, 0)}, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	all, _ := p.FetchAll(context.Background())
	if len(all) != 1 {
		t.Fatalf("cancelled apply wrote entries")
	}
}

func TestSinceOverridesAnchor(t *testing.T) {
	ctx := context.Background()
	s := newSession(store.NewMemory(), clock(10, 10))
	s.Since = clock(9, 0)
	candidates, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates from explicit anchor, got %v", candidates)
	}
	if _, err := (&Session{}).Begin(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}
