package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/skald-dev/skald/src/aisdk"
	"github.com/skald-dev/skald/src/models"
)

// ErrNoProvider is returned when a model resolves to a provider that has not
// been configured (usually a missing API key).
var ErrNoProvider = fmt.Errorf("no provider configured")

// Registry routes model IDs to the provider adapters configured for this run.
// The catalog decides which provider owns a model; the registry holds the
// adapters that were actually constructed.
type Registry struct {
	catalog   *models.Registry
	logger    *slog.Logger
	mu        sync.RWMutex
	providers map[string]aisdk.Provider
}

// NewRegistry creates an empty provider registry over the given catalog.
func NewRegistry(catalog *models.Registry, logger *slog.Logger) *Registry {
	if catalog == nil {
		catalog = models.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		catalog:   catalog,
		logger:    logger.With("component", "provider_registry"),
		providers: make(map[string]aisdk.Provider),
	}
}

// Register installs the adapter serving the named provider.
func (r *Registry) Register(name string, p aisdk.Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	r.logger.Debug("registered provider", "provider", name)
}

// Providers lists the configured provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Catalog exposes the model catalog backing this registry.
func (r *Registry) Catalog() *models.Registry {
	return r.catalog
}

// Model resolves a model ID through the catalog and returns a client from the
// owning provider.
func (r *Registry) Model(ctx context.Context, modelID string) (aisdk.ModelClient, error) {
	info, err := r.catalog.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	p, ok := r.providers[info.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s (model %s)", ErrNoProvider, info.Provider, modelID)
	}

	return p.Model(ctx, modelID)
}

// GetModels lists every model the configured providers can serve.
func (r *Registry) GetModels(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	r.mu.RLock()
	configured := make(map[string]bool, len(r.providers))
	for name := range r.providers {
		configured[name] = true
	}
	r.mu.RUnlock()

	var out []*aisdk.ModelInfo
	for _, info := range r.catalog.List() {
		if configured[info.Provider] {
			out = append(out, info)
		}
	}
	return out, nil
}
