package app

import (
	"context"
	"sort"
	"time"

	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/window"
)

// SummaryDay groups one local day of windows.
type SummaryDay struct {
	Day     time.Time
	Entries []*entry.Entry
	Missed  []interval.Window
	// Logged is the number of distinct windows with at least one entry.
	Logged int
}

// Windows is the number of accounted-for windows on the day.
func (d SummaryDay) Windows() int { return d.Logged + len(d.Missed) }

// SummaryResult covers [Since, Until) day by day, oldest first.
type SummaryResult struct {
	Since  time.Time
	Until  time.Time
	Days   []SummaryDay
	Logged int
	Missed int
}

// Summary reports entries and missed windows between the bounds, grouped by
// the local day of each window's start. Windows that are not yet history
// are never counted as missed.
func (s *Service) Summary(ctx context.Context, since, until time.Time) (SummaryResult, error) {
	if since.After(until) {
		since, until = until, since
	}
	all, idx, err := s.snapshot(ctx)
	if err != nil {
		return SummaryResult{}, err
	}
	now := s.now()
	since, until = since.In(now.Location()), until.In(now.Location())
	result := SummaryResult{Since: since, Until: until}

	days := make(map[time.Time]*SummaryDay)
	var order []time.Time
	day := func(t time.Time) *SummaryDay {
		y, m, d := t.Date()
		key := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
		if sd, ok := days[key]; ok {
			return sd
		}
		sd := &SummaryDay{Day: key}
		days[key] = sd
		order = append(order, key)
		return sd
	}

	seen := make(map[interval.Key]struct{})
	for _, e := range all {
		start := e.Window.Start.In(since.Location())
		if start.Before(since) || !start.Before(until) {
			continue
		}
		sd := day(start)
		sd.Entries = append(sd.Entries, e)
		if _, ok := seen[e.Window.Key()]; !ok {
			seen[e.Window.Key()] = struct{}{}
			sd.Logged++
			result.Logged++
		}
	}

	live := window.Live(now, s.Grace, idx)
	for _, w := range interval.Range(since, until, s.Grace.WindowDuration) {
		if !w.Start.Before(live.Start) {
			break
		}
		if w.Start.Before(since) || idx.Covered(w) {
			continue
		}
		sd := day(w.Start)
		sd.Missed = append(sd.Missed, w)
		result.Missed++
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	result.Days = make([]SummaryDay, 0, len(order))
	for _, key := range order {
		result.Days = append(result.Days, *days[key])
	}
	return result, nil
}
