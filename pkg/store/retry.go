package store

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// backoff bounds how hard a write retries against a locked database.
type backoff struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
}

// writeBackoff covers a `tock watch` process and a `tock log` racing on the
// same file; busy_timeout absorbs most of that before we ever see an error.
var writeBackoff = backoff{
	attempts: 4,
	base:     50 * time.Millisecond,
	ceiling:  500 * time.Millisecond,
}

// sqliteCode extracts the extended result code from a driver error.
func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

// contended reports lock errors that go away once the other writer commits.
func contended(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return code == sqlite3.SQLITE_IOERR_SHORT_READ
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// isUniqueViolation reports a primary key or unique index conflict.
func isUniqueViolation(err error) bool {
	if code, ok := sqliteCode(err); ok {
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// do runs fn until it succeeds, fails for a reason other than contention, or
// the attempts run out. Waiting between attempts stops early when ctx ends.
func (b backoff) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < b.attempts; attempt++ {
		if err = fn(); !contended(err) {
			return err
		}
		if attempt == b.attempts-1 {
			break
		}
		t := time.NewTimer(b.delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}

// delay doubles from base up to ceiling and adds up to base of jitter.
func (b backoff) delay(attempt int) time.Duration {
	d := b.base << uint(attempt)
	if d > b.ceiling || d <= 0 {
		d = b.ceiling
	}
	return d + time.Duration(rand.Int63n(int64(b.base)))
}
