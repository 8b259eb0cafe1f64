// Package entry defines a journal entry recorded against a time window.
package entry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tableflip.dev/tock/pkg/interval"
)

// CurrentSchema is stamped on every stored entry.
const CurrentSchema = "v1"

// ErrEmptyText is returned when an entry would carry no text.
var ErrEmptyText = errors.New("entry: text must not be empty")

// Entry records what happened during one window. LoggedAt is when the entry
// was written, which for late and catch-up entries is after Window.End.
type Entry struct {
	ID       string          `json:"id"`
	Schema   string          `json:"schema,omitempty"`
	Text     string          `json:"text"`
	Tags     []string        `json:"tags"`
	LoggedAt Timestamp       `json:"loggedAt"`
	Window   interval.Window `json:"window"`
}

// New builds an entry for w with a fresh ID. Text is trimmed and must be
// non-empty; tags are normalized with NormalizeTags.
func New(w interval.Window, text string, tags []string, loggedAt time.Time) (*Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	return &Entry{
		ID:       uuid.New().String(),
		Schema:   CurrentSchema,
		Text:     text,
		Tags:     NormalizeTags(tags),
		LoggedAt: Timestamp{Time: loggedAt},
		Window:   w,
	}, nil
}

// Late reports whether the entry was written after its window closed.
func (e *Entry) Late() bool {
	return !e.LoggedAt.Before(e.Window.End)
}

// Edit replaces the text and tags. The ID and Window never change.
func (e *Entry) Edit(text string, tags []string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	e.Text = text
	e.Tags = NormalizeTags(tags)
	return nil
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Tags = append([]string{}, e.Tags...)
	return &cp
}

func (e *Entry) String() string {
	if len(e.Tags) == 0 {
		return fmt.Sprintf("%s  %s", e.Window, e.Text)
	}
	return fmt.Sprintf("%s  %s  #%s", e.Window, e.Text, strings.Join(e.Tags, " #"))
}

// NormalizeTags trims, drops empties and duplicates, and keeps input order.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
