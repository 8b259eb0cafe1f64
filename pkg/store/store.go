// Package store persists journal entries.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
)

var (
	// ErrNotFound is returned when no entry has the requested ID.
	ErrNotFound = errors.New("store: entry not found")
	// ErrDuplicateID is returned when inserting an ID that already exists.
	ErrDuplicateID = errors.New("store: duplicate entry id")
	// ErrUnavailable wraps failures of the underlying storage engine.
	ErrUnavailable = errors.New("store: unavailable")
)

// Persistence is the entry store contract. Implementations guarantee ID
// uniqueness; one entry per window is not enforced here.
type Persistence interface {
	// FetchAll returns every entry ordered by window start.
	FetchAll(ctx context.Context) ([]*entry.Entry, error)
	Insert(ctx context.Context, e *entry.Entry) error
	Update(ctx context.Context, e *entry.Entry) error
	Delete(ctx context.Context, id string) error
	// Watch streams change notifications until ctx is done.
	Watch(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Open returns the backend named by cfg.
func Open(cfg *config.Config, logger *slog.Logger) (Persistence, error) {
	if cfg == nil {
		return nil, errors.New("store: no configuration")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch cfg.Backend {
	case config.BackendDiskv, "":
		return NewDiskv(cfg.BasePath(), logger)
	case config.BackendSQLite:
		return NewSQLite(cfg.BasePath(), logger)
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func validate(e *entry.Entry) error {
	if e == nil {
		return errors.New("store: nil entry")
	}
	if e.ID == "" {
		return errors.New("store: entry id required")
	}
	if e.Window.IsZero() {
		return errors.New("store: entry window required")
	}
	return nil
}

func sortEntries(entries []*entry.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]
		if left == nil || right == nil {
			return left != nil
		}
		ls, rs := left.Window.Start, right.Window.Start
		if !ls.Equal(rs) {
			return ls.Before(rs)
		}
		if !left.LoggedAt.Equal(right.LoggedAt.Time) {
			return left.LoggedAt.Before(right.LoggedAt.Time)
		}
		return left.ID < right.ID
	})
}
