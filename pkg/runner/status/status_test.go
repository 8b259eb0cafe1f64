package status

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/store"
)

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func span(h, m int) interval.Window {
	start := at(h, m)
	return interval.Window{Start: start, End: start.Add(30 * time.Minute)}
}

// fixture has 9:00 and 10:00 logged; at 11:40 the 11:00 window is in grace.
func fixture(t *testing.T) *app.Service {
	t.Helper()
	color.NoColor = true
	var entries []*entry.Entry
	for _, w := range []interval.Window{span(9, 0), span(10, 0)} {
		e, err := entry.New(w, "work", nil, w.End)
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, e)
	}
	return &app.Service{
		Persistence: store.NewMemory(entries...),
		Grace:       config.Grace{WindowDuration: 30 * time.Minute, LateGrace: 15 * time.Minute},
		Now:         func() time.Time { return at(11, 40) },
	}
}

func TestStatusJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Status{App: fixture(t), JSON: true, Out: &buf}).Do(context.Background()); err != nil {
		t.Fatalf("status: %v", err)
	}
	var got struct {
		State     string            `json:"state"`
		Target    interval.Window   `json:"target"`
		Remaining string            `json:"remaining"`
		Missed    []interval.Window `json:"missed"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if got.State != "late-grace" || !got.Target.Equal(span(11, 0)) || got.Remaining != "5m0s" {
		t.Fatalf("unexpected status %+v", got)
	}
	if len(got.Missed) != 2 || !got.Missed[0].Equal(span(9, 30)) || !got.Missed[1].Equal(span(10, 30)) {
		t.Fatalf("unexpected missed %+v", got.Missed)
	}
}

func TestStatusEmptyStoreHasNoMissed(t *testing.T) {
	svc := &app.Service{
		Persistence: store.NewMemory(),
		Grace:       config.Grace{WindowDuration: 30 * time.Minute, LateGrace: 5 * time.Minute},
		Now:         func() time.Time { return at(10, 47) },
	}
	var buf bytes.Buffer
	if err := (&Status{App: svc, JSON: true, Out: &buf}).Do(context.Background()); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(buf.String(), `"missed": []`) || !strings.Contains(buf.String(), `"state": "open"`) {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestMissedJSONLast(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Missed{App: fixture(t), Last: 1, JSON: true, Out: &buf}).Do(context.Background()); err != nil {
		t.Fatalf("missed: %v", err)
	}
	var got struct {
		Missed []interval.Window `json:"missed"`
		Count  int               `json:"count"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if got.Count != 1 || len(got.Missed) != 1 || !got.Missed[0].Equal(span(10, 30)) {
		t.Fatalf("unexpected missed %+v", got)
	}
}

func TestMissedPretty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Missed{App: fixture(t), Out: &buf}).Do(context.Background()); err != nil {
		t.Fatalf("missed: %v", err)
	}
	if !strings.Contains(buf.String(), "09:30") || !strings.Contains(buf.String(), "10:30") {
		t.Fatalf("expected both missed windows in output:\n%s", buf.String())
	}
}

func TestStatusRequiresApp(t *testing.T) {
	if err := (&Status{}).Do(context.Background()); err == nil {
		t.Fatal("expected an error without a service")
	}
	if err := (&Missed{}).Do(context.Background()); err == nil {
		t.Fatal("expected an error without a service")
	}
}
