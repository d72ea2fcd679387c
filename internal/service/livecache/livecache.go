package livecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CandleKeep/internal/domain/models"
	domrepo "CandleKeep/internal/domain/repository"
	"CandleKeep/pkg/cache"
)

// keyPrefix matches the ingestor's ticker key layout.
const keyPrefix = "ticker:"

// Store implements LiveCache over a byte-level cache backend. Values are the
// JSON LiveTick snapshot at `ticker:{symbol}`, bounded by a short TTL so a
// dead feed cannot keep serving a stale price.
type Store struct {
	backend cache.BytesCache
	ttl     time.Duration
}

// New creates the live tick cache. ttl defaults to 120 seconds.
func New(backend cache.BytesCache, ttl time.Duration) domrepo.LiveCache {
	if ttl <= 0 {
		ttl = 120 * time.Second
	}
	return &Store{backend: backend, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, symbol string) (models.LiveTick, bool, error) {
	b, found, err := s.backend.GetBytes(ctx, keyPrefix+symbol)
	if err != nil || !found {
		return models.LiveTick{}, false, err
	}

	var tick models.LiveTick
	if err := json.Unmarshal(b, &tick); err != nil {
		return models.LiveTick{}, false, fmt.Errorf("decode live tick: %w", err)
	}
	return tick, true, nil
}

func (s *Store) Set(ctx context.Context, tick models.LiveTick) error {
	if tick.Symbol == "" {
		return fmt.Errorf("live tick symbol empty")
	}
	b, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("encode live tick: %w", err)
	}
	return s.backend.SetBytes(ctx, keyPrefix+tick.Symbol, b, s.ttl)
}
