package entry

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"tableflip.dev/tock/pkg/interval"
)

func testWindow() interval.Window {
	return interval.Containing(time.Date(2026, 4, 2, 10, 47, 0, 0, time.UTC), 30*time.Minute)
}

func TestNewTrimsAndValidates(t *testing.T) {
	now := time.Date(2026, 4, 2, 11, 3, 0, 0, time.UTC)
	e, err := New(testWindow(), "  wrote tests \n", []string{" work", "#work", "", "deep"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if e.Text != "wrote tests" {
		t.Fatalf("unexpected text %q", e.Text)
	}
	if !reflect.DeepEqual(e.Tags, []string{"work", "deep"}) {
		t.Fatalf("unexpected tags %v", e.Tags)
	}
	if !e.Late() {
		t.Fatalf("entry logged after window end should be late")
	}

	if _, err := New(testWindow(), "   ", nil, now); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestNewGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e, err := New(testWindow(), "x", nil, time.Now())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestEditKeepsIdentity(t *testing.T) {
	e, _ := New(testWindow(), "first", nil, time.Now())
	id, w := e.ID, e.Window
	if err := e.Edit("second", []string{"a"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if e.ID != id || !e.Window.Equal(w) {
		t.Fatalf("edit changed identity")
	}
	if e.Text != "second" || len(e.Tags) != 1 {
		t.Fatalf("edit not applied: %+v", e)
	}
	if err := e.Edit("", nil); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if e.Text != "second" {
		t.Fatalf("failed edit must not mutate entry")
	}
}

func TestJSONRoundTripPreservesWindow(t *testing.T) {
	e, _ := New(testWindow(), "hello", nil, time.Date(2026, 4, 2, 10, 50, 0, 0, time.UTC))
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Entry
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Window.Key() != e.Window.Key() {
		t.Fatalf("window changed: %v vs %v", got.Window, e.Window)
	}
	if !got.LoggedAt.Equal(e.LoggedAt.Time) {
		t.Fatalf("loggedAt changed: %v vs %v", got.LoggedAt, e.LoggedAt)
	}
	if got.Tags == nil {
		t.Fatalf("tags should decode as empty list")
	}
}

func TestCloneIsDeep(t *testing.T) {
	e, _ := New(testWindow(), "hello", []string{"a"}, time.Now())
	cp := e.Clone()
	cp.Tags[0] = "b"
	if e.Tags[0] != "a" {
		t.Fatalf("clone shares tag storage")
	}
}

func TestTimestampEmpty(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`""`), &ts); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !ts.IsZero() {
		t.Fatalf("expected zero timestamp")
	}
	b, _ := json.Marshal(ts)
	if string(b) != `""` {
		t.Fatalf("unexpected zero encoding %s", b)
	}
}
