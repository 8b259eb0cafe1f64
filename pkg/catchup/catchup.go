// Package catchup fills a batch of missed windows with a single text.
//
// A Session holds a purely local selection over the missed windows; nothing
// is written until Commit or Apply. Writes for distinct windows are
// independent: one failed insert never blocks the others, and failures are
// reported per window.
package catchup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/reconcile"
	"tableflip.dev/tock/pkg/store"
)

// DefaultParallelism bounds concurrent inserts for one batch.
const DefaultParallelism = 4

var (
	ErrEmptySelection = errors.New("catchup: no windows selected")
	ErrNotMissed      = errors.New("catchup: window is not missed")
	ErrPartialBatch   = errors.New("catchup: some windows could not be written")
	ErrNoStore        = errors.New("catchup: no persistence configured")
)

// WindowError pairs a window with the reason its entry was not written.
type WindowError struct {
	Window interval.Window
	Err    error
}

func (w WindowError) Error() string {
	return fmt.Sprintf("%s: %v", w.Window.Label(), w.Err)
}

func (w WindowError) Unwrap() error { return w.Err }

// Result lists what a batch wrote, oldest window first.
type Result struct {
	Succeeded []*entry.Entry
	Failed    []WindowError
}

// OK reports whether every selected window was written.
func (r Result) OK() bool { return len(r.Failed) == 0 }

// Total is the number of windows attempted.
func (r Result) Total() int { return len(r.Succeeded) + len(r.Failed) }

// PartialBatchError is returned alongside a Result when at least one write
// failed. It matches ErrPartialBatch and every underlying write error.
type PartialBatchError struct {
	Succeeded int
	Failed    []WindowError
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("catchup: %d of %d windows failed (first: %v)",
		len(e.Failed), e.Succeeded+len(e.Failed), e.Failed[0])
}

func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed)+1)
	errs = append(errs, ErrPartialBatch)
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// Session is one interactive catch-up.
type Session struct {
	Store store.Persistence
	Grace config.Grace
	// Now defaults to time.Now.
	Now func() time.Time
	// Since bounds the missed windows offered; zero means the earliest entry.
	Since time.Time
	// Parallelism bounds concurrent writes; zero means DefaultParallelism.
	Parallelism int
	Logger      *slog.Logger

	mu         sync.Mutex
	candidates []interval.Window
	selected   map[interval.Key]interval.Window
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// missed reads a fresh snapshot of the store and reconciles it.
func (s *Session) missed(ctx context.Context) ([]interval.Window, error) {
	if s.Store == nil {
		return nil, ErrNoStore
	}
	entries, err := s.Store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	idx := reconcile.NewIndex(entries)
	since := s.Since
	if since.IsZero() {
		since = idx.Earliest()
	}
	return idx.Missed(since, s.now(), s.Grace), nil
}

// Begin loads the current missed windows and clears any selection.
func (s *Session) Begin(ctx context.Context) ([]interval.Window, error) {
	missed, err := s.missed(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = missed
	s.selected = make(map[interval.Key]interval.Window)
	return append([]interval.Window(nil), missed...), nil
}

// Candidates returns the windows offered by Begin.
func (s *Session) Candidates() []interval.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interval.Window(nil), s.candidates...)
}

func (s *Session) isCandidate(w interval.Window) bool {
	for _, c := range s.candidates {
		if c.Equal(w) {
			return true
		}
	}
	return false
}

// Toggle flips the selection of w and reports whether it is now selected.
// Windows that were not offered by Begin are never selected.
func (s *Session) Toggle(w interval.Window) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCandidate(w) {
		return false
	}
	if s.selected == nil {
		s.selected = make(map[interval.Key]interval.Window)
	}
	k := w.Key()
	if _, ok := s.selected[k]; ok {
		delete(s.selected, k)
		return false
	}
	s.selected[k] = w
	return true
}

// SelectAll selects every candidate.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[interval.Key]interval.Window, len(s.candidates))
	for _, c := range s.candidates {
		s.selected[c.Key()] = c
	}
}

// Selected returns the selection, oldest first.
func (s *Session) Selected() []interval.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedWindows(s.selected)
}

// Abandon discards the selection. Nothing is written.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = nil
	s.selected = nil
}

// Commit applies text to the current selection and ends the session.
func (s *Session) Commit(ctx context.Context, text string) (Result, error) {
	res, err := s.Apply(ctx, s.Selected(), text)
	if err == nil || errors.Is(err, ErrPartialBatch) {
		s.Abandon()
	}
	return res, err
}

// Apply writes one entry per window in selection, each carrying text, no
// tags, and LoggedAt = now. Every window must be missed in a fresh read of
// the store; otherwise nothing is written. Writes that fail are returned in
// Result.Failed together with a *PartialBatchError, and those windows stay
// missed.
func (s *Session) Apply(ctx context.Context, selection []interval.Window, text string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, entry.ErrEmptyText
	}
	unique := make(map[interval.Key]interval.Window, len(selection))
	for _, w := range selection {
		unique[w.Key()] = w
	}
	if len(unique) == 0 {
		return Result{}, ErrEmptySelection
	}
	windows := sortedWindows(unique)

	missed, err := s.missed(ctx)
	if err != nil {
		return Result{}, err
	}
	open := make(map[interval.Key]struct{}, len(missed))
	for _, w := range missed {
		open[w.Key()] = struct{}{}
	}
	for _, w := range windows {
		if _, ok := open[w.Key()]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrNotMissed, w.Label())
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	now := s.now()
	written := make([]*entry.Entry, len(windows))
	failed := make([]error, len(windows))

	limit := s.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, w := range windows {
		g.Go(func() error {
			e, err := entry.New(w, text, nil, now)
			if err == nil {
				err = s.Store.Insert(ctx, e)
			}
			if err != nil {
				failed[i] = err
				return nil
			}
			written[i] = e
			return nil
		})
	}
	_ = g.Wait()

	var res Result
	for i, w := range windows {
		if failed[i] != nil {
			res.Failed = append(res.Failed, WindowError{Window: w, Err: failed[i]})
			s.logger().Warn("catch-up write failed", "window", w.Label(), "error", failed[i])
			continue
		}
		res.Succeeded = append(res.Succeeded, written[i])
	}
	s.logger().Info("catch-up applied", "written", len(res.Succeeded), "failed", len(res.Failed))
	if !res.OK() {
		return res, &PartialBatchError{Succeeded: len(res.Succeeded), Failed: res.Failed}
	}
	return res, nil
}

func sortedWindows(m map[interval.Key]interval.Window) []interval.Window {
	out := make([]interval.Window, 0, len(m))
	for _, w := range m {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
