// Package reconcile computes which windows have no covering entry.
package reconcile

import (
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/window"
)

// Index is the set of windows that have at least one entry. Matching is by
// exact stored bounds, so entries written under a different window length
// still cover the bounds they were written for.
type Index struct {
	windows  map[interval.Key]int
	earliest time.Time
}

// NewIndex indexes entries by window. Nil entries are ignored; duplicate
// entries for the same window collapse.
func NewIndex(entries []*entry.Entry) *Index {
	idx := &Index{windows: make(map[interval.Key]int, len(entries))}
	for _, e := range entries {
		if e == nil || e.Window.IsZero() {
			continue
		}
		idx.windows[e.Window.Key()]++
		if idx.earliest.IsZero() || e.Window.Start.Before(idx.earliest) {
			idx.earliest = e.Window.Start
		}
	}
	return idx
}

// Covered reports whether w has an entry.
func (x *Index) Covered(w interval.Window) bool {
	if x == nil {
		return false
	}
	return x.windows[w.Key()] > 0
}

// Count returns the number of entries recorded for w.
func (x *Index) Count(w interval.Window) int {
	if x == nil {
		return 0
	}
	return x.windows[w.Key()]
}

// Duplicates returns how many distinct windows have more than one entry.
func (x *Index) Duplicates() int {
	if x == nil {
		return 0
	}
	n := 0
	for _, c := range x.windows {
		if c > 1 {
			n++
		}
	}
	return n
}

// Len is the number of distinct covered windows.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.windows)
}

// Earliest is the start of the earliest covered window, or the zero time
// when nothing is covered.
func (x *Index) Earliest() time.Time {
	if x == nil {
		return time.Time{}
	}
	return x.earliest
}

// Missed returns, oldest first, every window from the one containing since
// up to but excluding the live window that has no covering entry. The live
// window is the current window, or the previous window while it is still in
// late grace.
func Missed(entries []*entry.Entry, since, now time.Time, grace config.Grace) []interval.Window {
	return NewIndex(entries).Missed(since, now, grace)
}

// Missed is the package-level Missed over an existing index.
func (x *Index) Missed(since, now time.Time, grace config.Grace) []interval.Window {
	if since.IsZero() {
		return nil
	}
	// Windows align to midnight in the caller's zone, whatever zone since
	// was recorded in.
	since = since.In(now.Location())
	live := window.Live(now, grace, x)
	var out []interval.Window
	d := grace.WindowDuration
	for w := interval.Containing(since, d); w.Start.Before(live.Start); w = interval.Successor(w, d) {
		if !x.Covered(w) {
			out = append(out, w)
		}
	}
	return out
}

// MissedSinceFirst anchors Missed at the earliest entry. With no entries
// there is no anchor and nothing is missed.
func MissedSinceFirst(entries []*entry.Entry, now time.Time, grace config.Grace) []interval.Window {
	idx := NewIndex(entries)
	return idx.Missed(idx.Earliest(), now, grace)
}

// Last keeps the newest n windows of a chronological list. n <= 0 keeps all.
func Last(windows []interval.Window, n int) []interval.Window {
	if n <= 0 || len(windows) <= n {
		return windows
	}
	return windows[len(windows)-n:]
}
