// Package interval computes clock-aligned, fixed-length time windows.
//
// A Window is the half-open range [Start, End). Window starts are aligned to
// a multiple of the window duration measured from local midnight of the
// calendar day the timestamp falls on, in the timestamp's own Location.
// All arithmetic is performed in whole seconds.
package interval

import (
	"fmt"
	"time"
)

// DefaultDuration is the window length used when none is configured.
const DefaultDuration = 30 * time.Minute

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Key is a comparable identity for a Window, suitable as a map key.
type Key struct {
	Start int64
	End   int64
}

// Key returns the structural identity of the window in unix seconds.
func (w Window) Key() Key {
	return Key{Start: w.Start.Unix(), End: w.End.Unix()}
}

// Equal reports whether both windows cover exactly the same instants.
func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration is End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// In returns the window with both bounds expressed in loc.
func (w Window) In(loc *time.Location) Window {
	return Window{Start: w.Start.In(loc), End: w.End.In(loc)}
}

// String renders the window as local wall-clock "15:04–15:04".
func (w Window) String() string {
	return fmt.Sprintf("%s–%s", w.Start.Format("15:04"), w.End.Format("15:04"))
}

// Label renders the window with its calendar day, "Mon Jan 2 15:04–15:04".
func (w Window) Label() string {
	return fmt.Sprintf("%s %s", w.Start.Format("Mon Jan 2"), w.String())
}

// seconds normalizes d to a positive whole number of seconds.
func seconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s <= 0 {
		return int64(DefaultDuration / time.Second)
	}
	return s
}

// Containing returns the window of length d that contains t.
//
// The window start is the greatest multiple of d, counted from local
// midnight of t's calendar day, not exceeding t's wall-clock time of day.
// The end is Start + d of real elapsed time and may fall on the next
// calendar day.
func Containing(t time.Time, d time.Duration) Window {
	size := seconds(d)
	t = t.Truncate(time.Second)
	h, m, s := t.Clock()
	ofDay := int64(h*3600 + m*60 + s)
	start := t.Add(-time.Duration(ofDay%size) * time.Second)
	return Window{Start: start, End: start.Add(time.Duration(size) * time.Second)}
}

// Previous returns the window of length d that ends where w starts.
func Previous(w Window, d time.Duration) Window {
	size := time.Duration(seconds(d)) * time.Second
	return Window{Start: w.Start.Add(-size), End: w.Start}
}

// Next returns the window of length d that starts where w ends.
func Next(w Window, d time.Duration) Window {
	size := time.Duration(seconds(d)) * time.Second
	return Window{Start: w.End, End: w.End.Add(size)}
}

// Successor returns the window the clock aligns to once w has ended. It is
// Next(w, d) whenever d divides the day evenly and no offset change falls
// inside w; otherwise it is the window re-aligned to the new day.
func Successor(w Window, d time.Duration) Window {
	s := Containing(w.End, d)
	if !s.Start.After(w.Start) {
		return Next(w, d)
	}
	return s
}

// Range enumerates consecutive windows of length d, beginning with the
// window containing from, whose start is strictly before until.
func Range(from, until time.Time, d time.Duration) []Window {
	if !from.Before(until) {
		return nil
	}
	var out []Window
	for w := Containing(from, d); w.Start.Before(until); w = Successor(w, d) {
		out = append(out, w)
	}
	return out
}
