package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Local keeps results as <id>.bin plus <id>.json in a directory.
type Local struct {
	dir string
	now func() time.Time
}

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = filepath.Join("uploads", "results")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Local{dir: dir, now: time.Now}, nil
}

func (l *Local) Backend() string { return "local" }

func (l *Local) paths(id string) (data, meta string) {
	return filepath.Join(l.dir, id+".bin"), filepath.Join(l.dir, id+".json")
}

func (l *Local) Put(_ context.Context, r *Result, data []byte) error {
	if err := checkID(r.ID); err != nil {
		return fmt.Errorf("invalid result id %q", r.ID)
	}
	if r.Size == 0 {
		r.Size = int64(len(data))
	}
	dp, mp := l.paths(r.ID)
	meta, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dp, data, 0o600); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.WriteFile(mp, meta, 0o600); err != nil {
		_ = os.Remove(dp)
		return fmt.Errorf("write result metadata: %w", err)
	}
	return nil
}

func (l *Local) readMeta(id string) (*Result, error) {
	_, mp := l.paths(id)
	b, err := os.ReadFile(mp)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read result metadata: %w", err)
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode result metadata: %w", err)
	}
	return &r, nil
}

func (l *Local) Get(ctx context.Context, id string) (*Result, []byte, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	r, err := l.readMeta(id)
	if err != nil {
		return nil, nil, err
	}
	if r.Expired(l.now()) {
		_ = l.Delete(ctx, id)
		return nil, nil, ErrNotFound
	}
	dp, _ := l.paths(id)
	data, err := os.ReadFile(dp)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read result: %w", err)
	}
	return r, data, nil
}

func (l *Local) Delete(_ context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	dp, mp := l.paths(id)
	for _, p := range []string{dp, mp} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Sweep removes expired results and returns how many were deleted.
func (l *Local) Sweep(ctx context.Context) int {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", l.dir).Msg("results sweep failed")
		return 0
	}
	removed := 0
	now := l.now()
	for _, e := range entries {
		id, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || !ValidID(id) {
			continue
		}
		r, err := l.readMeta(id)
		if err != nil || !r.Expired(now) {
			continue
		}
		if err := l.Delete(ctx, id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("swept expired results")
	}
	return removed
}

func (l *Local) Ping(context.Context) error {
	_, err := os.Stat(l.dir)
	return err
}

func (l *Local) Close() error { return nil }
