package interval

import (
	"testing"
	"time"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2026, time.March, 3, hour, min, sec, 0, time.UTC)
}

func TestContainingAligned(t *testing.T) {
	tests := map[string]struct {
		t         time.Time
		d         time.Duration
		wantStart time.Time
		wantEnd   time.Time
	}{
		"mid window": {
			t:         at(10, 47, 0),
			d:         30 * time.Minute,
			wantStart: at(10, 30, 0),
			wantEnd:   at(11, 0, 0),
		},
		"exactly on boundary": {
			t:         at(11, 0, 0),
			d:         30 * time.Minute,
			wantStart: at(11, 0, 0),
			wantEnd:   at(11, 30, 0),
		},
		"last second of window": {
			t:         at(10, 59, 59),
			d:         30 * time.Minute,
			wantStart: at(10, 30, 0),
			wantEnd:   at(11, 0, 0),
		},
		"sub second truncated": {
			t:         at(10, 59, 59).Add(999 * time.Millisecond),
			d:         30 * time.Minute,
			wantStart: at(10, 30, 0),
			wantEnd:   at(11, 0, 0),
		},
		"quarter hours": {
			t:         at(0, 14, 0),
			d:         15 * time.Minute,
			wantStart: at(0, 0, 0),
			wantEnd:   at(0, 15, 0),
		},
		"crosses midnight without clamping": {
			t:         at(23, 30, 0),
			d:         7 * time.Hour,
			wantStart: at(21, 0, 0),
			wantEnd:   at(21, 0, 0).Add(7 * time.Hour),
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := Containing(tc.t, tc.d)
			if !got.Start.Equal(tc.wantStart) || !got.End.Equal(tc.wantEnd) {
				t.Fatalf("Containing(%s) = %s..%s, want %s..%s", tc.t, got.Start, got.End, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestContainingInvariants(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	durations := []time.Duration{time.Minute, 15 * time.Minute, 30 * time.Minute, time.Hour, 90 * time.Minute}
	// Walk across the 2026 spring-forward and fall-back transitions.
	starts := []time.Time{
		time.Date(2026, time.March, 7, 22, 0, 0, 0, loc),
		time.Date(2026, time.October, 31, 22, 0, 0, 0, loc),
	}
	for _, begin := range starts {
		for _, d := range durations {
			for i := 0; i < 24*60; i += 7 {
				ts := begin.Add(time.Duration(i) * time.Minute)
				w := Containing(ts, d)
				if ts.Before(w.Start) || !ts.Before(w.End) {
					t.Fatalf("Containing(%s, %s) = [%s, %s) does not contain t", ts, d, w.Start, w.End)
				}
				if w.End.Sub(w.Start) != d {
					t.Fatalf("Containing(%s, %s) has length %s", ts, d, w.End.Sub(w.Start))
				}
				again := Containing(ts, d)
				if again != w {
					t.Fatalf("Containing(%s, %s) not idempotent: %v vs %v", ts, d, w, again)
				}
			}
		}
	}
}

func TestContainingStableWithinWindow(t *testing.T) {
	d := 30 * time.Minute
	w := Containing(at(9, 0, 0), d)
	for ts := w.Start; ts.Before(w.End); ts = ts.Add(37 * time.Second) {
		if got := Containing(ts, d); got != w {
			t.Fatalf("Containing(%s) = %v, want %v", ts, got, w)
		}
	}
}

func TestContainingNonPositiveDurationFallsBack(t *testing.T) {
	got := Containing(at(10, 47, 0), 0)
	if got.Duration() != DefaultDuration {
		t.Fatalf("expected fallback duration %s, got %s", DefaultDuration, got.Duration())
	}
}

func TestPreviousNext(t *testing.T) {
	d := 30 * time.Minute
	w := Containing(at(10, 47, 0), d)

	prev := Previous(w, d)
	if !prev.Start.Equal(at(10, 0, 0)) || !prev.End.Equal(w.Start) {
		t.Fatalf("unexpected previous window %v", prev)
	}
	next := Next(w, d)
	if !next.Start.Equal(w.End) || !next.End.Equal(at(11, 30, 0)) {
		t.Fatalf("unexpected next window %v", next)
	}
	if !Next(Previous(w, d), d).Equal(w) {
		t.Fatalf("Next(Previous(w)) != w")
	}
}

func TestRange(t *testing.T) {
	d := 30 * time.Minute
	got := Range(at(9, 10, 0), at(11, 0, 0), d)
	want := []time.Time{at(9, 0, 0), at(9, 30, 0), at(10, 0, 0), at(10, 30, 0)}
	if len(got) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("window %d starts at %s, want %s", i, got[i].Start, want[i])
		}
	}
	if Range(at(11, 0, 0), at(9, 0, 0), d) != nil {
		t.Fatalf("expected empty range when from is after until")
	}
}

func TestKeyMatchesAcrossLocations(t *testing.T) {
	d := 30 * time.Minute
	w := Containing(at(10, 47, 0), d)
	other := w.In(time.FixedZone("X", 3*3600))
	if w.Key() != other.Key() {
		t.Fatalf("expected equal keys across locations")
	}
	if !w.Equal(other) {
		t.Fatalf("expected windows to be equal")
	}
}

func TestString(t *testing.T) {
	w := Containing(at(10, 47, 0), 30*time.Minute)
	if got := w.String(); got != "10:30–11:00" {
		t.Fatalf("unexpected String() %q", got)
	}
}

func TestSuccessorRealignsAtMidnight(t *testing.T) {
	d := 7 * time.Hour
	late := Containing(at(23, 0, 0), d)
	got := Successor(late, d)
	want := Containing(late.End, d)
	if !got.Equal(want) {
		t.Fatalf("Successor = %v, want %v", got, want)
	}
	if !got.Start.After(late.Start) {
		t.Fatalf("successor must start after its predecessor")
	}

	half := Containing(at(10, 47, 0), 30*time.Minute)
	if !Successor(half, 30*time.Minute).Equal(Next(half, 30*time.Minute)) {
		t.Fatalf("Successor should equal Next for evenly dividing durations")
	}
}
