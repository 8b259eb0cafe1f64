// Package window derives the logging state for the current instant from
// window boundaries, grace settings and entry coverage.
package window

import (
	"fmt"
	"strings"
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/interval"
)

// State is the logging state at a given instant.
type State int

const (
	// Open means the current window is accepting its entry.
	Open State = iota
	// LateGrace means the window that just closed is still accepting its entry.
	LateGrace
	// Closed means the current window is already covered and nothing else
	// is accepting an entry until the next window opens.
	Closed
	// TooEarly means the current window is covered and the next window
	// already accepts an entry ahead of its start.
	TooEarly
)

var stateNames = map[State]string{
	Open:      "open",
	LateGrace: "late-grace",
	Closed:    "closed",
	TooEarly:  "too-early",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(v string) (State, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, n := range stateNames {
		if n == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown logging state %q", v)
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Coverage reports whether a window already has an entry.
type Coverage interface {
	Covered(w interval.Window) bool
}

// CoverageFunc adapts a function to Coverage.
type CoverageFunc func(w interval.Window) bool

func (f CoverageFunc) Covered(w interval.Window) bool { return f(w) }

// Nothing is a Coverage with no entries.
var Nothing Coverage = CoverageFunc(func(interval.Window) bool { return false })

// Evaluation is the logging state at At along with the window that an
// entry written now should be recorded against.
type Evaluation struct {
	At      time.Time
	State   State
	Current interval.Window
	// Target is the window to log against: the previous window during
	// LateGrace, the next window during TooEarly, otherwise Current.
	Target interval.Window
	// Deadline is the boundary at which the state next changes on its own.
	// LateGrace holds through its Deadline; every other state ends there.
	Deadline time.Time
	// Remaining is Deadline - At.
	Remaining time.Duration
}

// Accepting reports whether an entry may be written for Target now.
func (e Evaluation) Accepting() bool {
	return e.State != Closed
}

// Evaluate is a pure function of its inputs; it never fails.
//
// A window that has just closed stays the log target for up to LateGrace
// after its end, unless it is already covered. With early grace enabled and
// the current window covered, the next window is the target for the last
// EarlyGrace of the current window.
func Evaluate(now time.Time, grace config.Grace, cov Coverage) Evaluation {
	if cov == nil {
		cov = Nothing
	}
	d := grace.WindowDuration
	now = now.Truncate(time.Second)
	current := interval.Containing(now, d)
	ev := Evaluation{At: now, Current: current}

	if grace.LateGrace > 0 {
		prev := interval.Previous(current, d)
		if now.Sub(prev.End) <= grace.LateGrace && !cov.Covered(prev) {
			ev.State = LateGrace
			ev.Target = prev
			// Grace is inclusive: the state holds through Deadline itself.
			ev.Deadline = prev.End.Add(grace.LateGrace)
			ev.Remaining = ev.Deadline.Sub(now)
			return ev
		}
	}

	if cov.Covered(current) {
		next := interval.Next(current, d)
		earlyFrom := current.End.Add(-grace.EarlyGrace)
		if grace.EarlyGrace > 0 && !now.Before(earlyFrom) && !cov.Covered(next) {
			ev.State = TooEarly
			ev.Target = next
			ev.Deadline = current.End
		} else {
			ev.State = Closed
			ev.Target = current
			ev.Deadline = current.End
			if grace.EarlyGrace > 0 && now.Before(earlyFrom) && !cov.Covered(next) {
				ev.Deadline = earlyFrom
			}
		}
		ev.Remaining = ev.Deadline.Sub(now)
		return ev
	}

	ev.State = Open
	ev.Target = current
	ev.Deadline = current.End
	ev.Remaining = ev.Deadline.Sub(now)
	return ev
}

// Live returns the earliest window that is still accepting its entry at
// now. Every window that starts before it is history.
func Live(now time.Time, grace config.Grace, cov Coverage) interval.Window {
	ev := Evaluate(now, grace, cov)
	if ev.State == LateGrace {
		return ev.Target
	}
	return ev.Current
}
