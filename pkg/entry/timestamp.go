package entry

import (
	"encoding/json"
	"fmt"
	"time"
)

func ParseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// Timestamp is a time that serializes as an RFC3339 string and tolerates an
// empty value when decoding.
type Timestamp struct {
	time.Time
}

// SameDay reports whether t and then share a local calendar day.
func (t Timestamp) SameDay(then time.Time) bool {
	ly, lm, ld := t.Local().Date()
	ry, rm, rd := then.Local().Date()
	return ly == ry && lm == rm && ld == rd
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(fmt.Sprintf("%q", FormatTime(t.Time))), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var timestamp string
	if err := json.Unmarshal(b, &timestamp); err != nil {
		return err
	}
	if timestamp == "" {
		t.Time = time.Time{}
		return nil
	}
	var err error
	t.Time, err = ParseTime(timestamp)
	return err
}

func (t Timestamp) String() string {
	return t.UTC().Format(time.RFC3339)
}

func FormatTime(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}
