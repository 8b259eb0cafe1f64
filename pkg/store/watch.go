package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType describes the nature of a persistence change notification.
type EventType int

const (
	// EventDayChanged indicates entries bucketed under Day were added,
	// edited, or removed.
	EventDayChanged EventType = iota

	// EventInvalidated signals a change that could not be attributed to a
	// single day; callers should reload everything.
	EventInvalidated
)

func (t EventType) String() string {
	switch t {
	case EventDayChanged:
		return "day-changed"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event is emitted by Persistence.Watch when underlying storage changes.
type Event struct {
	Type EventType
	// Day is the yyyymmdd bucket for EventDayChanged.
	Day string
}

const watchDelay = 100 * time.Millisecond

// Watch streams change events until ctx is cancelled. Callers should drain the
// returned channel to avoid dropping events. The channel is closed once
// ctx is done or the watcher encounters an unrecoverable error.
func (p *persistence) Watch(ctx context.Context) (<-chan Event, error) {
	if err := os.MkdirAll(p.basePath, 0o755); err != nil {
		return nil, unavailable("ensure base path", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, unavailable("create watcher", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				p.logger.Warn("watcher close", "error", err)
			}
		})
	}

	dirs, err := collectDirs(p.basePath)
	if err != nil {
		closeWatcher()
		return nil, unavailable("enumerate directories", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, unavailable("watch "+dir, err)
		}
	}

	events := make(chan Event, 64)

	go func() {
		defer close(events)
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		var sendMu sync.Mutex
		closed := false
		send := func(ev Event) {
			sendMu.Lock()
			defer sendMu.Unlock()
			if closed {
				return
			}
			select {
			case events <- ev:
			default:
			}
		}

		batch := newCoalescer(watchDelay)
		defer func() {
			batch.Stop()
			sendMu.Lock()
			closed = true
			sendMu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("store watcher error", "error", err)
				batch.Enqueue(Event{Type: EventInvalidated}, send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						absDir := filepath.Clean(evt.Name)
						if _, found := watched[absDir]; !found {
							if err := watcher.Add(absDir); err != nil {
								p.logger.Warn("store watch directory", "dir", absDir, "error", err)
							} else {
								watched[absDir] = struct{}{}
							}
						}
						// A new day bucket; entries inside it may have been
						// written before the watch was added.
						batch.Enqueue(Event{Type: EventInvalidated}, send)
						continue
					}
				}

				day := p.dayForPath(evt.Name)
				if day == "" {
					batch.Enqueue(Event{Type: EventInvalidated}, send)
					continue
				}
				batch.Enqueue(Event{Type: EventDayChanged, Day: day}, send)
			}
		}
	}()

	return events, nil
}

// collectDirs walks base and returns all directories that should be watched.
func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// dayForPath derives the day bucket from a diskv path.
func (p *persistence) dayForPath(path string) string {
	rel, err := filepath.Rel(p.basePath, path)
	if err != nil || rel == "." {
		return ""
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	if len(parts) < 2 {
		return ""
	}
	if _, err := time.Parse(dayLayout, parts[0]); err != nil {
		return ""
	}
	return parts[0]
}

// coalescer batches change notifications for delay after the first one, so
// a burst of writes to one day yields a single event. Any invalidation in the
// batch replaces the per-day events.
type coalescer struct {
	delay time.Duration

	mu          sync.Mutex
	timer       *time.Timer
	invalidated bool
	days        map[string]struct{}
}

func newCoalescer(delay time.Duration) *coalescer {
	return &coalescer{delay: delay, days: make(map[string]struct{})}
}

func (c *coalescer) Enqueue(ev Event, send func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Type == EventInvalidated {
		c.invalidated = true
	} else {
		c.days[ev.Day] = struct{}{}
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, func() { c.flush(send) })
	}
}

func (c *coalescer) flush(send func(Event)) {
	c.mu.Lock()
	invalidated, days := c.invalidated, c.days
	c.invalidated, c.days, c.timer = false, make(map[string]struct{}), nil
	c.mu.Unlock()

	if invalidated {
		send(Event{Type: EventInvalidated})
		return
	}
	for day := range days {
		send(Event{Type: EventDayChanged, Day: day})
	}
}

func (c *coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
