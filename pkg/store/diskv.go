package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"tableflip.dev/tock/pkg/entry"
)

const dayLayout = "20060102"

// NewDiskv stores one JSON file per entry under basePath, bucketed by the
// UTC day of the entry's window start.
func NewDiskv(basePath string, logger *slog.Logger) (Persistence, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("store: base path required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, unavailable("ensure base path", err)
	}
	return &persistence{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			CacheSizeMax:      1024 * 1024, // 1MB
		}),
		basePath: basePath,
		logger:   logger,
	}, nil
}

// errUndecodable marks a stored value that is not a valid entry.
var errUndecodable = errors.New("store: undecodable entry")

type persistence struct {
	d        *diskv.Diskv
	basePath string
	logger   *slog.Logger
}

func (p *persistence) read(key string) (*entry.Entry, error) {
	val, err := p.d.Read(key)
	if err != nil {
		return nil, err
	}
	e := &entry.Entry{}
	if err := json.Unmarshal(val, e); err != nil {
		return nil, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	if e.Schema == "" {
		e.Schema = entry.CurrentSchema
	}
	if e.ID == "" {
		e.ID = keyToPathTransform(key).FileName
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e, nil
}

func (p *persistence) FetchAll(ctx context.Context) ([]*entry.Entry, error) {
	walk, stop := context.WithCancel(ctx)
	defer stop()
	all := make([]*entry.Entry, 0)
	for key := range p.d.Keys(walk.Done()) {
		e, err := p.read(key)
		switch {
		case err == nil:
		case errors.Is(err, errUndecodable):
			p.logger.Warn("skipping undecodable entry", "key", key, "error", err)
			continue
		case errors.Is(err, fs.ErrNotExist):
			// Deleted between listing and reading.
			continue
		default:
			return nil, unavailable("read "+key, err)
		}
		all = append(all, e)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sortEntries(all)
	return all, nil
}

func (p *persistence) Insert(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if _, ok := p.find(ctx, e.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	return p.write(e)
}

func (p *persistence) Update(ctx context.Context, e *entry.Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	key, ok := p.find(ctx, e.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, e.ID)
	}
	if key != toKey(e) {
		// The window moved; drop the old bucket so the id stays unique.
		if err := p.d.Erase(key); err != nil {
			return unavailable("erase", err)
		}
	}
	return p.write(e)
}

func (p *persistence) Delete(ctx context.Context, id string) error {
	key, ok := p.find(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := p.d.Erase(key); err != nil {
		return unavailable("erase", err)
	}
	return nil
}

func (p *persistence) Close() error {
	return nil
}

func (p *persistence) write(e *entry.Entry) error {
	if e.Schema == "" {
		e.Schema = entry.CurrentSchema
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := p.d.Write(toKey(e), data); err != nil {
		return unavailable("write", err)
	}
	return nil
}

func (p *persistence) find(ctx context.Context, id string) (string, bool) {
	if id == "" {
		return "", false
	}
	suffix := "-" + id
	for key := range p.d.Keys(ctx.Done()) {
		if strings.HasSuffix(key, suffix) {
			return key, true
		}
	}
	return "", false
}

func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) < 2 {
		return &diskv.PathKey{FileName: s}
	}
	return &diskv.PathKey{
		Path:     parts[:1],
		FileName: parts[1],
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	if len(pathKey.Path) == 0 {
		return pathKey.FileName
	}
	return fmt.Sprintf("%s-%s", strings.Join(pathKey.Path, "-"), pathKey.FileName)
}

// toKey makes `day-id`.
func toKey(e *entry.Entry) string {
	return fmt.Sprintf("%s-%s", e.Window.Start.UTC().Format(dayLayout), e.ID)
}
