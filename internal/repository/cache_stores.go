package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	"FinSignal/pkg/cache"
)

// CacheStateStore persists the learning state as one JSON document.
type CacheStateStore struct {
	cache cache.Service
	key   string
}

func NewCacheStateStore(c cache.Service, key string) *CacheStateStore {
	return &CacheStateStore{cache: c, key: key}
}

func (s *CacheStateStore) Load(ctx context.Context) (*models.LearningState, error) {
	var st models.LearningState
	if err := s.cache.Get(ctx, s.key, &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, domrepo.ErrStateNotFound
		}
		return nil, fmt.Errorf("load learning state: %w", err)
	}
	return &st, nil
}

// Save writes without expiry.
func (s *CacheStateStore) Save(ctx context.Context, st *models.LearningState) error {
	if err := s.cache.Set(ctx, s.key, st, 0); err != nil {
		return fmt.Errorf("save learning state: %w", err)
	}
	return nil
}

// channelPublisher is implemented by caches with pub/sub, i.e. Redis.
type channelPublisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// CacheSignalPublisher stores the latest signal per symbol under
// "signal:latest:<symbol>" and, when the cache supports it, announces it on
// the "signals:<symbol>" channel. Trade executors poll or subscribe.
type CacheSignalPublisher struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheSignalPublisher(c cache.Service, ttl time.Duration) *CacheSignalPublisher {
	return &CacheSignalPublisher{cache: c, ttl: ttl}
}

func latestSignalKey(symbol string) string {
	return cache.GenerateKey("signal:latest", symbol)
}

func (p *CacheSignalPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	if err := p.cache.Set(ctx, latestSignalKey(s.Symbol), s, p.ttl); err != nil {
		return fmt.Errorf("store latest signal: %w", err)
	}
	if pub, ok := p.cache.(channelPublisher); ok {
		if err := pub.Publish(ctx, cache.GenerateKey("signals", s.Symbol), s); err != nil {
			return fmt.Errorf("announce signal: %w", err)
		}
	}
	return nil
}

// Latest returns the stored signal or nil when none is live.
func (p *CacheSignalPublisher) Latest(ctx context.Context, symbol string) (*models.Signal, error) {
	var s models.Signal
	if err := p.cache.Get(ctx, latestSignalKey(symbol), &s); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Close is a no-op; the cache is closed by its owner.
func (p *CacheSignalPublisher) Close() error { return nil }

var (
	_ domrepo.StateStore        = (*CacheStateStore)(nil)
	_ domrepo.SignalPublisher   = (*CacheSignalPublisher)(nil)
	_ domrepo.LatestSignalStore = (*CacheSignalPublisher)(nil)
)
