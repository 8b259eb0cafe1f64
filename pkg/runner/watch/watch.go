// Package watch runs the live clock: it prints state transitions and keeps
// one reminder scheduled as windows roll over and entries change.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/printers"
	"tableflip.dev/tock/pkg/reminder"
	"tableflip.dev/tock/pkg/window"
)

type Watch struct {
	App      *app.Service
	Hours    config.Hours
	Notifier reminder.Notifier
	Printer  *printers.PrettyPrint
	Logger   *slog.Logger
}

func (w *Watch) now() time.Time {
	if w.App.Now == nil {
		return time.Now()
	}
	return w.App.Now()
}

func (w *Watch) Do(ctx context.Context) error {
	if w.App == nil || w.App.Persistence == nil {
		return errors.New("can not watch, no persistence")
	}
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pp := w.Printer
	if pp == nil {
		pp = &printers.PrettyPrint{}
	}

	// Subscribe before the first read so no change falls between the two.
	events, err := w.App.Watch(ctx)
	if err != nil {
		logger.Warn("store watch unavailable, entries logged elsewhere will show on restart", "error", err)
	}

	machine := window.NewMachine(w.App.Grace, logger)
	cov, err := w.App.Coverage(ctx)
	if err != nil {
		return err
	}
	pp.Transition(w.now(), machine.Update(cov, w.now()))

	var sched *reminder.Scheduler
	if w.Notifier != nil {
		sched = &reminder.Scheduler{Notifier: w.Notifier, Grace: w.App.Grace, Hours: w.Hours, Logger: logger}
		defer func() { _ = sched.Stop(context.Background()) }()
	}
	reschedule := func(cov window.Coverage) {
		if sched == nil {
			return
		}
		// Failures are logged by the scheduler and retried on the next change.
		_, _ = sched.Reschedule(ctx, w.now(), cov)
	}
	reschedule(cov)

	transitions, cancel := machine.Subscribe(16)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return machine.Run(ctx, w.now)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case t, ok := <-transitions:
				if !ok {
					return nil
				}
				pp.Transition(t.To.At, t.To)
				reschedule(cov)
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				fresh, err := w.App.Coverage(ctx)
				if err != nil {
					logger.Warn("refresh coverage", "error", err)
					continue
				}
				logger.Debug("store changed", "type", ev.Type.String(), "day", ev.Day)
				cov = fresh
				machine.Update(cov, w.now())
				reschedule(cov)
			}
		}
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
