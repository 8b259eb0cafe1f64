package window

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/interval"
)

// TickInterval is how often Run re-evaluates the state.
const TickInterval = time.Second

// Transition is published when the state or the target window changes.
type Transition struct {
	From Evaluation
	To   Evaluation
}

// Machine re-evaluates the logging state on every tick and on every
// coverage change, and notifies subscribers only on transitions. The
// coverage snapshot is replaced wholesale by Update; the machine never
// mutates it.
type Machine struct {
	grace  config.Grace
	logger *slog.Logger

	mu      sync.Mutex
	cov     Coverage
	last    Evaluation
	started bool
	nextID  int
	subs    map[int]chan Transition
}

// NewMachine returns a machine with no coverage. A nil logger discards.
func NewMachine(grace config.Grace, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		grace:  grace,
		logger: logger,
		cov:    Nothing,
		subs:   make(map[int]chan Transition),
	}
}

// Grace returns the settings the machine evaluates with.
func (m *Machine) Grace() config.Grace {
	return m.grace
}

// Subscribe returns a channel of transitions and a cancel func. Sends never
// block: when buf is full the transition is dropped, and the subscriber is
// expected to read Current for the latest state.
func (m *Machine) Subscribe(buf int) (<-chan Transition, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Transition, buf)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Update swaps the coverage snapshot and re-evaluates at now.
func (m *Machine) Update(cov Coverage, now time.Time) Evaluation {
	if cov == nil {
		cov = Nothing
	}
	m.mu.Lock()
	m.cov = cov
	m.mu.Unlock()
	return m.Tick(now)
}

// Tick re-evaluates at now and publishes a transition if anything changed.
// The first evaluation establishes the baseline and is not published.
func (m *Machine) Tick(now time.Time) Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Evaluate(now, m.grace, m.cov)
	if !m.started {
		m.started = true
		m.last = ev
		return ev
	}
	prev := m.last
	m.last = ev
	if prev.State == ev.State && prev.Target.Equal(ev.Target) {
		return ev
	}

	m.logger.Debug("logging state changed",
		"from", prev.State.String(), "to", ev.State.String(),
		"target", ev.Target.Label())
	t := Transition{From: prev, To: ev}
	for id, ch := range m.subs {
		select {
		case ch <- t:
		default:
			m.logger.Warn("dropping state transition for slow subscriber", "subscriber", id)
		}
	}
	return ev
}

// Current returns the most recent evaluation.
func (m *Machine) Current() Evaluation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run ticks once per TickInterval until ctx is done. now supplies the wall
// clock; every tick re-derives the state from it, so a process that was
// suspended across several windows catches up on its first tick.
func (m *Machine) Run(ctx context.Context, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	m.Tick(now())

	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick(now())
		}
	}
}

// Target is a convenience for the window an entry written at now belongs to.
func (m *Machine) Target(now time.Time) interval.Window {
	m.mu.Lock()
	cov := m.cov
	m.mu.Unlock()
	return Evaluate(now, m.grace, cov).Target
}
