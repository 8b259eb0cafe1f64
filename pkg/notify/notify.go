// Package notify implements reminder.Notifier for a running process.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"tableflip.dev/tock/pkg/reminder"
)

// DeliverFunc receives a payload when its instant arrives.
type DeliverFunc func(reminder.Payload)

// Timer delivers payloads in-process with time.AfterFunc. It is safe for
// concurrent use.
type Timer struct {
	Deliver DeliverFunc
	// Clock defaults to time.Now and is only consulted to compute delays.
	Clock func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

var _ reminder.Notifier = (*Timer)(nil)

// NewTimer returns a Timer that hands payloads to deliver.
func NewTimer(deliver DeliverFunc) *Timer {
	return &Timer{Deliver: deliver}
}

func (t *Timer) now() time.Time {
	if t.Clock == nil {
		return time.Now()
	}
	return t.Clock()
}

func (t *Timer) ScheduleAt(ctx context.Context, at time.Time, p reminder.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Deliver == nil {
		return "", fmt.Errorf("notify: no delivery configured")
	}
	id := uuid.New().String()
	delay := at.Sub(t.now())
	if delay < 0 {
		delay = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timers == nil {
		t.timers = make(map[string]*time.Timer)
	}
	t.timers[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if live {
			t.Deliver(p)
		}
	})
	return id, nil
}

func (t *Timer) Cancel(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
	}
	return nil
}

func (t *Timer) CancelAll(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	return nil
}

// Pending is the number of scheduled, undelivered payloads.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Terminal returns a DeliverFunc that rings the bell and prints the payload.
func Terminal(w io.Writer) DeliverFunc {
	if w == nil {
		w = color.Output
	}
	var mu sync.Mutex
	title := color.New(color.Bold, color.FgHiYellow)
	body := color.New(color.Faint)
	return func(p reminder.Payload) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprint(w, "\a")
		_, _ = title.Fprintf(w, "%s ", p.Title)
		_, _ = body.Fprintln(w, p.Body)
	}
}
