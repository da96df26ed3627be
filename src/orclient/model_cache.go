package orclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skald-dev/skald/src/aisdk"
)

// modelCache memoizes the routed model list. OpenRouter has no per-model
// endpoint, so single-model lookups go through the cached list too.
type modelCache struct {
	client *Client
	ttl    time.Duration

	mu        sync.RWMutex
	models    []*aisdk.ModelInfo
	fetchedAt time.Time
}

func newModelCache(client *Client, ttl time.Duration) *modelCache {
	return &modelCache{client: client, ttl: ttl}
}

// GetModelList returns the model list, refetching it once the TTL lapses.
func (mc *modelCache) GetModelList(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	mc.mu.RLock()
	models, fetchedAt := mc.models, mc.fetchedAt
	mc.mu.RUnlock()

	if models != nil && time.Since(fetchedAt) < mc.ttl {
		return models, nil
	}

	fresh, err := mc.client.listModelsUncached(ctx)
	if err != nil {
		// A stale list beats no list.
		if models != nil {
			return models, nil
		}
		return nil, err
	}

	mc.mu.Lock()
	mc.models = fresh
	mc.fetchedAt = time.Now()
	mc.mu.Unlock()
	return fresh, nil
}

// GetModel finds one model by exact ID.
func (mc *modelCache) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	models, err := mc.GetModelList(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m.ID == modelID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
}

// Clear drops the cached list.
func (mc *modelCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.models = nil
	mc.fetchedAt = time.Time{}
}
