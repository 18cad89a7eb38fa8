package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	_ "time/tzdata"

	"imagelab/internal/storage"
)

const (
	// LastVisitLayout renders visit times as day/month/year hour:minute.
	LastVisitLayout = "02/01/2006 15:04"
	DefaultTimeZone = "Asia/Jerusalem"
	DefaultKey      = "counter.json"
)

// Stats is the persisted visitor state.
type Stats struct {
	UserCount int64  `json:"user_count"`
	LastVisit string `json:"last_visit"`
}

type fileStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Options configures the counter.
type Options struct {
	Key      string
	TimeZone string
	Now      func() time.Time
}

// Service counts unique visitor sessions and remembers the latest visit.
type Service struct {
	mu    sync.Mutex
	store fileStore
	key   string
	loc   *time.Location
	now   func() time.Time
	stats Stats
}

// NewService loads the current stats from store. A missing file starts from zero.
func NewService(ctx context.Context, store *storage.FileStore, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter: store is required")
	}
	return newService(ctx, store, opts)
}

func newService(ctx context.Context, store fileStore, opts Options) (*Service, error) {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	tz := opts.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("counter: load time zone %q: %w", tz, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Service{store: store, key: key, loc: loc, now: now}
	raw, err := store.Read(ctx, key)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("counter: load: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.stats); err != nil {
			return nil, fmt.Errorf("counter: decode %s: %w", key, err)
		}
	}
	return s, nil
}

// RecordVisit increments the counter, stamps the visit time and persists both.
// The in-memory state is only advanced when the write succeeds.
func (s *Service) RecordVisit(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := Stats{
		UserCount: s.stats.UserCount + 1,
		LastVisit: s.now().In(s.loc).Format(LastVisitLayout),
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return s.stats, fmt.Errorf("counter: encode: %w", err)
	}
	if _, err := s.store.Write(ctx, s.key, raw); err != nil {
		return s.stats, fmt.Errorf("counter: persist: %w", err)
	}
	s.stats = next
	return next, nil
}

// Snapshot returns the current stats.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
