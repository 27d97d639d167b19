package persist

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Heartcoolman/vocabulary-learning-app-sub009/internal/strategy"
)

// #region cached-repositories

// CachedStateRepository is a read-through/write-through Redis decorator over a
// StateRepository. Cache failures degrade silently to the inner repository;
// the cache is never the source of truth.
type CachedStateRepository struct {
	inner StateRepository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedStateRepository wraps inner with a Redis cache.
func NewCachedStateRepository(inner StateRepository, rdb *redis.Client, ttl time.Duration) *CachedStateRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedStateRepository{inner: inner, rdb: rdb, ttl: ttl}
}

func stateKey(userID string) string { return "amas:state:" + userID }

// LoadState implements StateRepository.
func (c *CachedStateRepository) LoadState(ctx context.Context, userID string) (strategy.UserState, bool, error) {
	if raw, err := c.rdb.Get(ctx, stateKey(userID)).Bytes(); err == nil {
		var state strategy.UserState
		if err := json.Unmarshal(raw, &state); err == nil {
			state.Clamp()
			return state, true, nil
		}
		// Corrupt cache entry: fall through to the source of truth.
		c.rdb.Del(ctx, stateKey(userID))
	}

	state, found, err := c.inner.LoadState(ctx, userID)
	if err != nil || !found {
		return state, found, err
	}
	c.populateState(ctx, userID, state)
	return state, true, nil
}

// SaveState implements StateRepository.
func (c *CachedStateRepository) SaveState(ctx context.Context, userID string, state strategy.UserState) error {
	if err := c.inner.SaveState(ctx, userID, state); err != nil {
		return err
	}
	c.populateState(ctx, userID, state)
	return nil
}

func (c *CachedStateRepository) populateState(ctx context.Context, userID string, state strategy.UserState) {
	if raw, err := json.Marshal(state); err == nil {
		c.rdb.Set(ctx, stateKey(userID), raw, c.ttl)
	}
}

// CachedModelRepository is the same decorator for model records.
type CachedModelRepository struct {
	inner ModelRepository
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedModelRepository wraps inner with a Redis cache.
func NewCachedModelRepository(inner ModelRepository, rdb *redis.Client, ttl time.Duration) *CachedModelRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedModelRepository{inner: inner, rdb: rdb, ttl: ttl}
}

func modelKey(userID string) string { return "amas:model:" + userID }

// LoadModel implements ModelRepository.
func (c *CachedModelRepository) LoadModel(ctx context.Context, userID string) (ModelRecord, bool, error) {
	if raw, err := c.rdb.Get(ctx, modelKey(userID)).Bytes(); err == nil {
		var rec ModelRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			return rec, true, nil
		}
		c.rdb.Del(ctx, modelKey(userID))
	}

	rec, found, err := c.inner.LoadModel(ctx, userID)
	if err != nil || !found {
		return rec, found, err
	}
	c.populateModel(ctx, userID, rec)
	return rec, true, nil
}

// SaveModel implements ModelRepository.
func (c *CachedModelRepository) SaveModel(ctx context.Context, userID string, rec ModelRecord) error {
	if err := c.inner.SaveModel(ctx, userID, rec); err != nil {
		return err
	}
	c.populateModel(ctx, userID, rec)
	return nil
}

func (c *CachedModelRepository) populateModel(ctx context.Context, userID string, rec ModelRecord) {
	if raw, err := json.Marshal(rec); err == nil {
		c.rdb.Set(ctx, modelKey(userID), raw, c.ttl)
	}
}

// #endregion
