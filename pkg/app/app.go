package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tableflip.dev/tock/pkg/catchup"
	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/reconcile"
	"tableflip.dev/tock/pkg/store"
	"tableflip.dev/tock/pkg/window"
)

// Service answers window queries and records entries on behalf of CLIs and
// servers. Every query reads one fresh snapshot of the store.
type Service struct {
	Persistence store.Persistence
	Grace       config.Grace
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

var (
	ErrNoPersistence    = errors.New("app: no persistence configured")
	ErrNotFound         = errors.New("app: entry not found")
	ErrAlreadyLogged    = errors.New("app: window already logged")
	ErrStoreUnavailable = errors.New("app: store unavailable")
)

// Status is the state of the clock at one instant.
type Status struct {
	At        time.Time
	State     window.State
	Current   interval.Window
	Target    interval.Window
	Deadline  time.Time
	Remaining time.Duration
	Missed    []interval.Window
	// Duplicates counts windows holding more than one entry.
	Duplicates int
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func (s *Service) snapshot(ctx context.Context) ([]*entry.Entry, *reconcile.Index, error) {
	if s.Persistence == nil {
		return nil, nil, ErrNoPersistence
	}
	all, err := s.Persistence.FetchAll(ctx)
	if err != nil {
		return nil, nil, storeErr("fetch", err)
	}
	return all, reconcile.NewIndex(all), nil
}

// Status evaluates the state and missed windows from a single snapshot.
// A zero since means the earliest entry.
func (s *Service) Status(ctx context.Context, since time.Time) (Status, error) {
	_, idx, err := s.snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	now := s.now()
	ev := window.Evaluate(now, s.Grace, idx)
	if since.IsZero() {
		since = idx.Earliest()
	}
	var missed []interval.Window
	if !since.IsZero() {
		missed = idx.Missed(since, now, s.Grace)
	}
	return Status{
		At:         ev.At,
		State:      ev.State,
		Current:    ev.Current,
		Target:     ev.Target,
		Deadline:   ev.Deadline,
		Remaining:  ev.Remaining,
		Missed:     missed,
		Duplicates: idx.Duplicates(),
	}, nil
}

// Evaluate returns the raw state machine evaluation at now.
func (s *Service) Evaluate(ctx context.Context) (window.Evaluation, error) {
	_, idx, err := s.snapshot(ctx)
	if err != nil {
		return window.Evaluation{}, err
	}
	return window.Evaluate(s.now(), s.Grace, idx), nil
}

// CurrentState returns the logging state now.
func (s *Service) CurrentState(ctx context.Context) (window.State, error) {
	ev, err := s.Evaluate(ctx)
	return ev.State, err
}

// TargetWindow returns the window an entry written now would be logged to.
func (s *Service) TargetWindow(ctx context.Context) (interval.Window, error) {
	ev, err := s.Evaluate(ctx)
	return ev.Target, err
}

// TimeRemaining returns the time until the state next changes on its own.
func (s *Service) TimeRemaining(ctx context.Context) (time.Duration, error) {
	ev, err := s.Evaluate(ctx)
	return ev.Remaining, err
}

// MissedWindows lists historical windows with no entry since the given
// instant, ascending. A zero since means the earliest entry.
func (s *Service) MissedWindows(ctx context.Context, since time.Time) ([]interval.Window, error) {
	st, err := s.Status(ctx, since)
	if err != nil {
		return nil, err
	}
	return st.Missed, nil
}

// Coverage returns a point-in-time coverage view of the store.
func (s *Service) Coverage(ctx context.Context) (window.Coverage, error) {
	_, idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// Log records text against the current target window. When that window
// already holds an entry, Log fails with ErrAlreadyLogged unless force is
// set, in which case a further entry is added to the same window.
func (s *Service) Log(ctx context.Context, text string, tags []string, force bool) (*entry.Entry, error) {
	_, idx, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ev := window.Evaluate(now, s.Grace, idx)
	if idx.Covered(ev.Target) && !force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLogged, ev.Target.Label())
	}
	e, err := entry.New(ev.Target, text, tags, now)
	if err != nil {
		return nil, err
	}
	if err := s.Persistence.Insert(ctx, e); err != nil {
		return nil, storeErr("insert", err)
	}
	s.logger().Info("entry logged", "id", e.ID, "window", e.Window.Label(), "state", ev.State.String(), "late", e.Late())
	return e, nil
}

// Get returns the entry with id.
func (s *Service) Get(ctx context.Context, id string) (*entry.Entry, error) {
	all, _, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Edit replaces the text and tags of the entry with id. Its window is kept.
func (s *Service) Edit(ctx context.Context, id, text string, tags []string) (*entry.Entry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Edit(text, tags); err != nil {
		return nil, err
	}
	if err := s.Persistence.Update(ctx, e); err != nil {
		return nil, storeErr("update", err)
	}
	return e, nil
}

// Delete removes an entry permanently. Its window becomes missed again once
// it is history.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.Persistence == nil {
		return ErrNoPersistence
	}
	if err := s.Persistence.Delete(ctx, id); err != nil {
		return storeErr("delete", err)
	}
	s.logger().Info("entry deleted", "id", id)
	return nil
}

// Entries lists every entry ordered by window start.
func (s *Service) Entries(ctx context.Context) ([]*entry.Entry, error) {
	all, _, err := s.snapshot(ctx)
	return all, err
}

// Watch subscribes to persistence change events.
func (s *Service) Watch(ctx context.Context) (<-chan store.Event, error) {
	if s.Persistence == nil {
		return nil, ErrNoPersistence
	}
	return s.Persistence.Watch(ctx)
}

// CatchUp starts a catch-up session over the store. A zero since means the
// earliest entry.
func (s *Service) CatchUp(since time.Time) *catchup.Session {
	return &catchup.Session{
		Store:  s.Persistence,
		Grace:  s.Grace,
		Now:    s.Now,
		Since:  since,
		Logger: s.logger(),
	}
}
