package catchup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/tock/pkg/app"
	"tableflip.dev/tock/pkg/catchup"
	"tableflip.dev/tock/pkg/config"
	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"
	"tableflip.dev/tock/pkg/store"
)

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func fixture(t *testing.T) (*app.Service, *store.Memory) {
	t.Helper()
	color.NoColor = true
	var seed []*entry.Entry
	for _, w := range []interval.Window{{Start: at(9, 0), End: at(9, 30)}, {Start: at(10, 0), End: at(10, 30)}} {
		e, err := entry.New(w, "seed", nil, w.End)
		if err != nil {
			t.Fatal(err)
		}
		seed = append(seed, e)
	}
	mem := store.NewMemory(seed...)
	return &app.Service{
		Persistence: mem,
		Grace:       config.Grace{WindowDuration: 30 * time.Minute, LateGrace: 15 * time.Minute},
		Now:         func() time.Time { return at(11, 40) },
	}, mem
}

// script answers a Selector with a fixed sequence of item labels.
func script(t *testing.T, picks ...string) Selector {
	return func(_ string, items []string, _ int) (int, error) {
		if len(picks) == 0 {
			t.Fatal("selector called more times than scripted")
		}
		want := picks[0]
		picks = picks[1:]
		for i, item := range items {
			if strings.HasSuffix(item, want) {
				return i, nil
			}
		}
		t.Fatalf("no item %q in %v", want, items)
		return 0, nil
	}
}

func count(t *testing.T, mem *store.Memory) int {
	t.Helper()
	all, err := mem.FetchAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(all)
}

func TestCatchUpToggleAndCommit(t *testing.T) {
	svc, mem := fixture(t)
	var buf bytes.Buffer
	c := &CatchUp{
		App:    svc,
		Select: script(t, "10:30–11:00", "09:30–10:00", "09:30–10:00", itemDone),
		Prompt: func(string) (string, error) { return "design review", nil },
		Out:    &buf,
	}
	if err := c.Do(context.Background()); err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n := count(t, mem); n != 3 {
		t.Fatalf("expected one window written, have %d entries", n)
	}
	if !strings.Contains(buf.String(), "design review") {
		t.Fatalf("written entries not printed:\n%s", buf.String())
	}
}

func TestCatchUpAbandon(t *testing.T) {
	svc, mem := fixture(t)
	var buf bytes.Buffer
	c := &CatchUp{
		App:    svc,
		Select: script(t, itemAll, itemAbandon),
		Prompt: func(string) (string, error) { t.Fatal("prompted after abandon"); return "", nil },
		Out:    &buf,
	}
	if err := c.Do(context.Background()); err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n := count(t, mem); n != 2 {
		t.Fatalf("abandon must not write, have %d entries", n)
	}
}

func TestCatchUpAllWithText(t *testing.T) {
	svc, mem := fixture(t)
	c := &CatchUp{App: svc, All: true, Text: "meetings", Out: &bytes.Buffer{}}
	if err := c.Do(context.Background()); err != nil {
		t.Fatalf("catch up: %v", err)
	}
	if n := count(t, mem); n != 4 {
		t.Fatalf("expected both missed windows written, have %d entries", n)
	}
}

func TestCatchUpDoneWithNothingSelected(t *testing.T) {
	svc, _ := fixture(t)
	c := &CatchUp{App: svc, Select: script(t, itemDone), Out: &bytes.Buffer{}}
	if err := c.Do(context.Background()); !errors.Is(err, catchup.ErrEmptySelection) {
		t.Fatalf("expected empty selection error, got %v", err)
	}
}
