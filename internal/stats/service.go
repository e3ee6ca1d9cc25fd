package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "lumbung:stats:snapshot"

// ReaderPort abstracts rollup reads for the cached service.
type ReaderPort interface {
	Get(ctx context.Context) (Snapshot, error)
}

// Service serves rollup snapshots through a Redis cache. Concurrent misses
// collapse onto one database read; a down cache degrades to direct reads.
type Service struct {
	repo   ReaderPort
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs Service. cache may be nil.
func NewService(repo ReaderPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Get returns the current rollup snapshot.
func (s *Service) Get(ctx context.Context) (Snapshot, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
			_ = s.cache.Del(ctx, cacheKey).Err()
		}
	}

	resultChan := s.group.DoChan(cacheKey, func() (interface{}, error) {
		snap, err := s.repo.Get(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		s.fill(ctx, snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// Invalidate drops the cached snapshot after a rollup write. Best effort.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil && s.logger != nil {
		s.logger.Warn("stats cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) fill(ctx context.Context, snap Snapshot) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("stats cache fill", slog.Any("error", err))
	}
}
