package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tableflip.dev/tock/pkg/entry"
	"tableflip.dev/tock/pkg/interval"

	_ "modernc.org/sqlite"
)

// sqliteFile is created inside the configured base path.
const sqliteFile = "tock.sqlite"

// pollInterval is how often Watch checks for commits by other connections.
const pollInterval = 500 * time.Millisecond

type sqliteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) a WAL-mode SQLite database under basePath.
func NewSQLite(basePath string, logger *slog.Logger) (Persistence, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("store: base path required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, unavailable("ensure base path", err)
	}
	dsn := filepath.Join(basePath, sqliteFile) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open db", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &sqliteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id           TEXT PRIMARY KEY,
		schema       TEXT NOT NULL,
		text         TEXT NOT NULL,
		tags         TEXT NOT NULL DEFAULT '[]',
		logged_at    TEXT NOT NULL,
		window_start INTEGER NOT NULL,
		window_end   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_window ON entries(window_start, window_end);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) FetchAll(ctx context.Context) ([]*entry.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schema, text, tags, logged_at, window_start, window_end
		 FROM entries ORDER BY window_start, logged_at, id`)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer rows.Close()

	out := make([]*entry.Entry, 0)
	for rows.Next() {
		var (
			e          entry.Entry
			tags       string
			loggedAt   string
			start, end int64
		)
		if err := rows.Scan(&e.ID, &e.Schema, &e.Text, &tags, &loggedAt, &start, &end); err != nil {
			return nil, unavailable("scan", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			s.logger.Warn("entry has unreadable tags", "id", e.ID, "error", err)
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		if t, err := time.Parse(time.RFC3339Nano, loggedAt); err == nil {
			e.LoggedAt = entry.Timestamp{Time: t.Local()}
		}
		e.Window = interval.Window{Start: time.Unix(start, 0).Local(), End: time.Unix(end, 0).Local()}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows", err)
	}
	return out, nil
}

func (s *sqliteStore) Insert(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	if e.Schema == "" {
		e.Schema = entry.CurrentSchema
	}
	err = writeBackoff.do(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO entries (id, schema, text, tags, logged_at, window_start, window_end)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Schema, e.Text, tags, entry.FormatTime(e.LoggedAt.Time),
			e.Window.Start.Unix(), e.Window.End.Unix(),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		return unavailable("insert", err)
	}
	return nil
}

func (s *sqliteStore) Update(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	var affected int64
	err = writeBackoff.do(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE entries SET text = ?, tags = ?, logged_at = ?, window_start = ?, window_end = ?
			 WHERE id = ?`,
			e.Text, tags, entry.FormatTime(e.LoggedAt.Time),
			e.Window.Start.Unix(), e.Window.End.Unix(), e.ID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return unavailable("update", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	var affected int64
	err := writeBackoff.do(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return unavailable("delete", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Watch polls PRAGMA data_version on a dedicated connection. The value
// changes whenever any other connection commits, which includes writes made
// by this process through the pool.
func (s *sqliteStore) Watch(ctx context.Context) (<-chan Event, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, unavailable("watch connection", err)
	}
	version := func() (int64, error) {
		var v int64
		err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
		return v, err
	}
	last, err := version()
	if err != nil {
		conn.Close()
		return nil, unavailable("data_version", err)
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)
		defer conn.Close()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v, err := version()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("sqlite watch poll", "error", err)
					continue
				}
				if v == last {
					continue
				}
				last = v
				select {
				case events <- Event{Type: EventInvalidated}:
				default:
				}
			}
		}
	}()
	return events, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
