package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/skald-dev/skald/src/aisdk"
)

// Provider identifiers shared by the registry and the adapters.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
)

// Parameter names a request may carry. Standard models take the sampling
// knobs; reasoning models take effort and completion-token limits and reject
// the sampling knobs outright.
var (
	standardParameterNames  = []string{"temperature", "top_p", "top_k", "max_tokens"}
	reasoningParameterNames = []string{"reasoning_effort", "max_completion_tokens"}
)

func standardModel(id, name, provider string, contextLength, maxOutput int) *aisdk.ModelInfo {
	return &aisdk.ModelInfo{
		ID:                  id,
		Name:                name,
		Provider:            provider,
		ContextLength:       contextLength,
		MaxOutputTokens:     maxOutput,
		SupportedParameters: standardParameterNames,
	}
}

func reasoningModel(id, name, provider string, contextLength, maxOutput int) *aisdk.ModelInfo {
	return &aisdk.ModelInfo{
		ID:                  id,
		Name:                name,
		Provider:            provider,
		ContextLength:       contextLength,
		MaxOutputTokens:     maxOutput,
		Reasoning:           true,
		SupportedParameters: reasoningParameterNames,
	}
}

// builtinCatalog lists models skald ships knowledge of. Unknown IDs are still
// usable; Resolve classifies them by prefix and assumes the standard profile.
func builtinCatalog() []*aisdk.ModelInfo {
	return []*aisdk.ModelInfo{
		standardModel("gpt-4o", "GPT-4o", ProviderOpenAI, 128000, 16384),
		standardModel("gpt-4o-mini", "GPT-4o mini", ProviderOpenAI, 128000, 16384),
		standardModel("gpt-4.1", "GPT-4.1", ProviderOpenAI, 1047576, 32768),
		reasoningModel("o3", "o3", ProviderOpenAI, 200000, 100000),
		reasoningModel("o3-mini", "o3-mini", ProviderOpenAI, 200000, 100000),
		reasoningModel("o4-mini", "o4-mini", ProviderOpenAI, 200000, 100000),
		standardModel("claude-sonnet-4-0", "Claude Sonnet 4", ProviderAnthropic, 200000, 64000),
		standardModel("claude-opus-4-1", "Claude Opus 4.1", ProviderAnthropic, 200000, 32000),
		standardModel("claude-3-5-haiku-latest", "Claude 3.5 Haiku", ProviderAnthropic, 200000, 8192),
		standardModel("gemini-2.0-flash", "Gemini 2.0 Flash", ProviderGoogle, 1048576, 8192),
		standardModel("gemini-2.5-pro", "Gemini 2.5 Pro", ProviderGoogle, 1048576, 65536),
		standardModel("gemini-2.5-flash", "Gemini 2.5 Flash", ProviderGoogle, 1048576, 65536),
		standardModel("anthropic/claude-sonnet-4", "Claude Sonnet 4", ProviderOpenRouter, 200000, 64000),
		standardModel("openai/gpt-4o", "GPT-4o", ProviderOpenRouter, 128000, 16384),
		standardModel("google/gemini-2.5-flash", "Gemini 2.5 Flash", ProviderOpenRouter, 1048576, 65536),
	}
}

// ErrUnknownModel is returned when a model ID cannot be mapped to a provider.
var ErrUnknownModel = fmt.Errorf("unknown model")

// Registry resolves model IDs to their catalog entries and parameter
// profiles.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*aisdk.ModelInfo
}

// NewRegistry creates a registry seeded with the built-in catalog.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]*aisdk.ModelInfo)}
	for _, m := range builtinCatalog() {
		r.models[m.ID] = m
	}
	return r
}

// Register adds or replaces a catalog entry.
func (r *Registry) Register(info *aisdk.ModelInfo) error {
	if info == nil || info.ID == "" {
		return fmt.Errorf("model info requires an ID")
	}
	if info.Provider == "" {
		return fmt.Errorf("model %s requires a provider", info.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[info.ID] = info
	return nil
}

// Resolve returns the catalog entry for a model ID. IDs missing from the
// catalog are classified by prefix so newly released models keep working;
// those entries assume the standard parameter profile.
func (r *Registry) Resolve(id string) (*aisdk.ModelInfo, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty model ID", ErrUnknownModel)
	}

	r.mu.RLock()
	info, ok := r.models[id]
	r.mu.RUnlock()
	if ok {
		return info, nil
	}

	provider := classifyByPrefix(id)
	if provider == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}

	synthesized := &aisdk.ModelInfo{
		ID:                  id,
		Name:                id,
		Provider:            provider,
		SupportedParameters: standardParameterNames,
	}
	if provider == ProviderOpenAI && isOpenAIReasoningID(id) {
		synthesized.Reasoning = true
		synthesized.SupportedParameters = reasoningParameterNames
	}
	return synthesized, nil
}

// List returns all catalog entries sorted by ID.
func (r *Registry) List() []*aisdk.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*aisdk.ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func classifyByPrefix(id string) string {
	lower := strings.ToLower(id)
	switch {
	// Slash-form IDs ("vendor/model") are OpenRouter's namespace.
	case strings.Contains(lower, "/"):
		return ProviderOpenRouter
	case strings.HasPrefix(lower, "gpt-"), isOpenAIReasoningID(lower), strings.HasPrefix(lower, "chatgpt"):
		return ProviderOpenAI
	case strings.HasPrefix(lower, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(lower, "gemini"):
		return ProviderGoogle
	default:
		return ""
	}
}

func isOpenAIReasoningID(id string) bool {
	lower := strings.ToLower(id)
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if lower == prefix || strings.HasPrefix(lower, prefix+"-") {
			return true
		}
	}
	return false
}
