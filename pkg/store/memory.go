package store

import (
	"context"
	"fmt"
	"sync"

	"tableflip.dev/tock/pkg/entry"
)

// Memory is a process-local Persistence. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry.Entry
	nextSub int
	subs    map[int]chan Event
}

// NewMemory returns an empty store seeded with entries, which are copied.
func NewMemory(entries ...*entry.Entry) *Memory {
	m := &Memory{
		entries: make(map[string]*entry.Entry, len(entries)),
		subs:    make(map[int]chan Event),
	}
	for _, e := range entries {
		if e != nil {
			m.entries[e.ID] = e.Clone()
		}
	}
	return m
}

func (m *Memory) FetchAll(ctx context.Context) ([]*entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	out := make([]*entry.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Clone())
	}
	m.mu.Unlock()
	sortEntries(out)
	return out, nil
}

func (m *Memory) Insert(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	m.entries[e.ID] = e.Clone()
	m.notify(e)
	return nil
}

func (m *Memory) Update(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	m.entries[e.ID] = e.Clone()
	m.notify(e)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.entries, id)
	m.notify(e)
	return nil
}

// Watch emits one EventDayChanged per mutation.
func (m *Memory) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 64)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (m *Memory) Close() error {
	return nil
}

// notify must be called with m.mu held.
func (m *Memory) notify(e *entry.Entry) {
	ev := Event{Type: EventDayChanged, Day: e.Window.Start.UTC().Format(dayLayout)}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
