package window

import (
	"testing"
	"time"

	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/interval"
)

func clock(h, m int) time.Time {
	return time.Date(2026, time.June, 10, h, m, 0, 0, time.UTC)
}

func span(h1, m1, h2, m2 int) interval.Window {
	return interval.Window{Start: clock(h1, m1), End: clock(h2, m2)}
}

type covered []interval.Window

func (c covered) Covered(w interval.Window) bool {
	for _, x := range c {
		if x.Equal(w) {
			return true
		}
	}
	return false
}

var halfHour = config.Grace{WindowDuration: 30 * time.Minute, LateGrace: 5 * time.Minute}

func TestEvaluate(t *testing.T) {
	tests := map[string]struct {
		now        time.Time
		grace      config.Grace
		cov        covered
		wantState  State
		wantTarget interval.Window
		wantLeft   time.Duration
	}{
		"open mid window": {
			now:        clock(10, 47),
			grace:      halfHour,
			wantState:  Open,
			wantTarget: span(10, 30, 11, 0),
			wantLeft:   13 * time.Minute,
		},
		"late grace after roll-over": {
			now:        clock(11, 3),
			grace:      halfHour,
			wantState:  LateGrace,
			wantTarget: span(10, 30, 11, 0),
			wantLeft:   2 * time.Minute,
		},
		"late grace inclusive at deadline": {
			now:        clock(11, 5),
			grace:      halfHour,
			wantState:  LateGrace,
			wantTarget: span(10, 30, 11, 0),
			wantLeft:   0,
		},
		"grace expired": {
			now:        clock(11, 8),
			grace:      halfHour,
			wantState:  Open,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   22 * time.Minute,
		},
		"grace skipped when previous covered": {
			now:        clock(11, 3),
			grace:      halfHour,
			cov:        covered{span(10, 30, 11, 0)},
			wantState:  Open,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   27 * time.Minute,
		},
		"zero grace opens immediately": {
			now:        clock(11, 0),
			grace:      config.Grace{WindowDuration: 30 * time.Minute},
			wantState:  Open,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   30 * time.Minute,
		},
		"closed when current covered": {
			now:        clock(11, 20),
			grace:      halfHour,
			cov:        covered{span(11, 0, 11, 30)},
			wantState:  Closed,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   10 * time.Minute,
		},
		"closed until early grace begins": {
			now:        clock(11, 20),
			grace:      config.Grace{WindowDuration: 30 * time.Minute, EarlyGrace: 5 * time.Minute},
			cov:        covered{span(11, 0, 11, 30)},
			wantState:  Closed,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   5 * time.Minute,
		},
		"too early inside early grace": {
			now:        clock(11, 27),
			grace:      config.Grace{WindowDuration: 30 * time.Minute, EarlyGrace: 5 * time.Minute},
			cov:        covered{span(11, 0, 11, 30)},
			wantState:  TooEarly,
			wantTarget: span(11, 30, 12, 0),
			wantLeft:   3 * time.Minute,
		},
		"early grace needs current covered": {
			now:        clock(11, 27),
			grace:      config.Grace{WindowDuration: 30 * time.Minute, EarlyGrace: 5 * time.Minute},
			wantState:  Open,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   3 * time.Minute,
		},
		"closed when next already logged early": {
			now:        clock(11, 27),
			grace:      config.Grace{WindowDuration: 30 * time.Minute, EarlyGrace: 5 * time.Minute},
			cov:        covered{span(11, 0, 11, 30), span(11, 30, 12, 0)},
			wantState:  Closed,
			wantTarget: span(11, 0, 11, 30),
			wantLeft:   3 * time.Minute,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := Evaluate(tc.now, tc.grace, tc.cov)
			if got.State != tc.wantState {
				t.Fatalf("state = %s, want %s", got.State, tc.wantState)
			}
			if !got.Target.Equal(tc.wantTarget) {
				t.Fatalf("target = %s, want %s", got.Target, tc.wantTarget)
			}
			if got.Remaining != tc.wantLeft {
				t.Fatalf("remaining = %s, want %s", got.Remaining, tc.wantLeft)
			}
		})
	}
}

func TestEvaluateNilCoverage(t *testing.T) {
	got := Evaluate(clock(10, 47), halfHour, nil)
	if got.State != Open {
		t.Fatalf("state = %s, want open", got.State)
	}
}

func TestLive(t *testing.T) {
	if got := Live(clock(11, 3), halfHour, nil); !got.Equal(span(10, 30, 11, 0)) {
		t.Fatalf("live during grace = %s", got)
	}
	if got := Live(clock(11, 8), halfHour, nil); !got.Equal(span(11, 0, 11, 30)) {
		t.Fatalf("live after grace = %s", got)
	}
}

func TestStateText(t *testing.T) {
	for _, s := range []State{Open, LateGrace, Closed, TooEarly} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", s, err)
		}
		var got State
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal %q: %v", b, err)
		}
		if got != s {
			t.Fatalf("round trip %s -> %s", s, got)
		}
	}
	if _, err := ParseState("sleeping"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
