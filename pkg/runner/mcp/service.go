// Package mcp exposes the tock journal over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/catchup"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/timeutil"
)

// Service adapts app.Service to transport-friendly values.
type Service struct {
	App *app.Service
}

// ErrUnknownWindow is returned when a requested window is not missed.
var ErrUnknownWindow = errors.New("window is not a missed window")

// WindowDTO is a transport-friendly projection of a window.
type WindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// EntryDTO is a transport-friendly projection of an entry.
type EntryDTO struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Tags     []string  `json:"tags"`
	Window   WindowDTO `json:"window"`
	LoggedAt string    `json:"loggedAt"`
	Late     bool      `json:"late"`
}

// StatusDTO describes the clock at one instant.
type StatusDTO struct {
	At               string      `json:"at"`
	State            string      `json:"state"`
	Current          WindowDTO   `json:"current"`
	Target           WindowDTO   `json:"target"`
	RemainingSeconds int64       `json:"remainingSeconds"`
	Remaining        string      `json:"remaining"`
	Missed           []WindowDTO `json:"missed"`
	MissedCount      int         `json:"missedCount"`
}

// CatchUpDTO reports a batch write. OK is false when any selected window
// could not be written.
type CatchUpDTO struct {
	OK        bool                `json:"ok"`
	Succeeded int                 `json:"succeeded"`
	FailedN   int                 `json:"failedCount"`
	Written   []EntryDTO          `json:"written"`
	Failed    []map[string]string `json:"failed,omitempty"`
}

// NewService builds a service wrapper over svc.
func NewService(svc *app.Service) *Service {
	return &Service{App: svc}
}

func toWindowDTO(w interval.Window) WindowDTO {
	return WindowDTO{
		Start: entry.FormatTime(w.Start),
		End:   entry.FormatTime(w.End),
		Label: w.Label(),
	}
}

func toWindowDTOs(ws []interval.Window) []WindowDTO {
	out := make([]WindowDTO, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowDTO(w))
	}
	return out
}

func toEntryDTO(e *entry.Entry) EntryDTO {
	return EntryDTO{
		ID:       e.ID,
		Text:     e.Text,
		Tags:     append([]string{}, e.Tags...),
		Window:   toWindowDTO(e.Window),
		LoggedAt: entry.FormatTime(e.LoggedAt.Time),
		Late:     e.Late(),
	}
}

// sinceFor resolves a lookback such as "1d"; empty means the earliest entry.
func (s *Service) sinceFor(lookback string) (time.Time, error) {
	if strings.TrimSpace(lookback) == "" {
		return time.Time{}, nil
	}
	d, _, err := timeutil.ParseLookback(lookback)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since value: %w", err)
	}
	now := time.Now()
	if s.App.Now != nil {
		now = s.App.Now()
	}
	return now.Add(-d), nil
}

// Status returns the current state and missed windows.
func (s *Service) Status(ctx context.Context, lookback string) (StatusDTO, error) {
	since, err := s.sinceFor(lookback)
	if err != nil {
		return StatusDTO{}, err
	}
	st, err := s.App.Status(ctx, since)
	if err != nil {
		return StatusDTO{}, err
	}
	return StatusDTO{
		At:               entry.FormatTime(st.At),
		State:            st.State.String(),
		Current:          toWindowDTO(st.Current),
		Target:           toWindowDTO(st.Target),
		RemainingSeconds: int64(st.Remaining / time.Second),
		Remaining:        timeutil.FormatSpan(st.Remaining),
		Missed:           toWindowDTOs(st.Missed),
		MissedCount:      len(st.Missed),
	}, nil
}

// Missed lists missed windows, newest limit of them when limit > 0.
func (s *Service) Missed(ctx context.Context, lookback string, limit int) ([]WindowDTO, error) {
	since, err := s.sinceFor(lookback)
	if err != nil {
		return nil, err
	}
	missed, err := s.App.MissedWindows(ctx, since)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(missed) > limit {
		missed = missed[len(missed)-limit:]
	}
	return toWindowDTOs(missed), nil
}

// Log records text against the current target window.
func (s *Service) Log(ctx context.Context, text string, tags []string, force bool) (EntryDTO, error) {
	e, err := s.App.Log(ctx, text, tags, force)
	if err != nil {
		return EntryDTO{}, err
	}
	return toEntryDTO(e), nil
}

// CatchUp fills the missed windows starting at starts with text. With all
// set, every missed window is filled and starts is ignored.
func (s *Service) CatchUp(ctx context.Context, starts []string, all bool, text string) (CatchUpDTO, error) {
	sess := s.App.CatchUp(time.Time{})
	candidates, err := sess.Begin(ctx)
	if err != nil {
		return CatchUpDTO{}, err
	}
	if all {
		sess.SelectAll()
	} else {
		byStart := make(map[int64]interval.Window, len(candidates))
		for _, w := range candidates {
			byStart[w.Start.Unix()] = w
		}
		for _, raw := range starts {
			t, err := entry.ParseTime(strings.TrimSpace(raw))
			if err != nil {
				return CatchUpDTO{}, fmt.Errorf("invalid window start %q: %w", raw, err)
			}
			w, ok := byStart[t.Unix()]
			if !ok {
				return CatchUpDTO{}, fmt.Errorf("%w: %s", ErrUnknownWindow, raw)
			}
			sess.Toggle(w)
		}
	}

	res, err := sess.Commit(ctx, text)
	if err != nil && !errors.Is(err, catchup.ErrPartialBatch) {
		return CatchUpDTO{}, err
	}
	out := CatchUpDTO{
		OK:        res.OK(),
		Succeeded: len(res.Succeeded),
		FailedN:   len(res.Failed),
		Written:   make([]EntryDTO, 0, len(res.Succeeded)),
	}
	for _, e := range res.Succeeded {
		out.Written = append(out.Written, toEntryDTO(e))
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, map[string]string{
			"window": f.Window.Label(),
			"error":  f.Err.Error(),
		})
	}
	return out, nil
}

// ListEntries returns entries whose window starts within lookback, or every
// entry when lookback is empty.
func (s *Service) ListEntries(ctx context.Context, lookback string) ([]EntryDTO, error) {
	since, err := s.sinceFor(lookback)
	if err != nil {
		return nil, err
	}
	all, err := s.App.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EntryDTO, 0, len(all))
	for _, e := range all {
		if !since.IsZero() && e.Window.Start.Before(since) {
			continue
		}
		out = append(out, toEntryDTO(e))
	}
	return out, nil
}

// EntryByID returns a single entry.
func (s *Service) EntryByID(ctx context.Context, id string) (EntryDTO, error) {
	e, err := s.App.Get(ctx, id)
	if err != nil {
		return EntryDTO{}, err
	}
	return toEntryDTO(e), nil
}
