// Package reminder asks a Notifier to prompt the user at window boundaries.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/window"
)

// Kind says why a reminder fires.
type Kind int

const (
	// KindWindowClosed fires when a window ends, prompting for its entry.
	KindWindowClosed Kind = iota
	// KindGraceEnding fires at the end of late grace for an unlogged window.
	KindGraceEnding
)

func (k Kind) String() string {
	switch k {
	case KindWindowClosed:
		return "window-closed"
	case KindGraceEnding:
		return "grace-ending"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Payload is what a notification carries.
type Payload struct {
	Kind   Kind
	Window interval.Window
	Title  string
	Body   string
}

// Notifier delivers payloads at a given instant.
type Notifier interface {
	// ScheduleAt arranges delivery of p at at and returns an identifier.
	ScheduleAt(ctx context.Context, at time.Time, p Payload) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

// Plan is the next reminder to schedule.
type Plan struct {
	At      time.Time
	Payload Payload
}

// Scheduler keeps exactly one pending reminder with its Notifier.
type Scheduler struct {
	Notifier Notifier
	Grace    config.Grace
	Hours    config.Hours
	Logger   *slog.Logger

	mu      sync.Mutex
	pending string
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Next returns the first reminder strictly after now that falls inside the
// reminder hours: the end of late grace for an unlogged window just closed,
// or else the end of the current window. cov may be nil.
func (s *Scheduler) Next(now time.Time, cov window.Coverage) Plan {
	ev := window.Evaluate(now, s.Grace, cov)
	d := ev.Current.Duration()

	if ev.State == window.LateGrace && ev.Deadline.After(now) && s.Hours.Allows(ev.Deadline) {
		return Plan{At: ev.Deadline, Payload: Payload{
			Kind:   KindGraceEnding,
			Window: ev.Target,
			Title:  "Last call",
			Body:   fmt.Sprintf("Log %s before it is marked missed.", ev.Target),
		}}
	}

	w := ev.Current
	// One day of windows is enough to reach the next allowed hour.
	limit := int((24*time.Hour)/d) + 1
	for i := 0; i < limit && !s.Hours.Allows(w.End); i++ {
		w = interval.Successor(w, d)
	}
	return Plan{At: w.End, Payload: Payload{
		Kind:   KindWindowClosed,
		Window: w,
		Title:  "What did you do?",
		Body:   fmt.Sprintf("Log %s.", w),
	}}
}

// Reschedule cancels the pending reminder and schedules the next one. A
// failure is logged and returned; the caller retries on the next roll-over.
func (s *Scheduler) Reschedule(ctx context.Context, now time.Time, cov window.Coverage) (Plan, error) {
	plan := s.Next(now, cov)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != "" {
		if err := s.Notifier.Cancel(ctx, s.pending); err != nil {
			s.logger().Warn("cancel pending reminder", "id", s.pending, "error", err)
		}
		s.pending = ""
	}
	id, err := s.Notifier.ScheduleAt(ctx, plan.At, plan.Payload)
	if err != nil {
		s.logger().Warn("schedule reminder", "at", plan.At, "kind", plan.Payload.Kind.String(), "error", err)
		return plan, fmt.Errorf("reminder: schedule at %s: %w", plan.At.Format(time.Kitchen), err)
	}
	s.pending = id
	s.logger().Debug("reminder scheduled", "at", plan.At, "kind", plan.Payload.Kind.String(), "window", plan.Payload.Window.Label())
	return plan, nil
}

// Stop cancels every reminder this process scheduled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = ""
	return s.Notifier.CancelAll(ctx)
}

// Run reschedules at every planned instant until ctx is done. Each round
// re-derives the plan from the wall clock so that time spent suspended is
// never replayed. cov is consulted each round and may be nil.
func (s *Scheduler) Run(ctx context.Context, now func() time.Time, cov func() window.Coverage) error {
	if now == nil {
		now = time.Now
	}
	coverage := func() window.Coverage {
		if cov == nil {
			return nil
		}
		return cov()
	}
	for {
		plan, err := s.Reschedule(ctx, now(), coverage())
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		wait := plan.At.Sub(now())
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
