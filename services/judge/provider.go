package judge

import (
	"context"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string

	// Available checks if the provider is available.
	Available(ctx context.Context) bool

	// Complete performs a completion request.
	Complete(ctx context.Context, params CompletionParams) (*CompletionResult, error)

	// CostPer1KTokens returns the cost per 1K tokens for each model.
	CostPer1KTokens() map[string]float64
}

// Registry manages available providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// List returns all registered providers.
func (r *Registry) List() []Provider {
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// Available returns all available providers.
func (r *Registry) Available(ctx context.Context) []Provider {
	var available []Provider
	for _, p := range r.providers {
		if p.Available(ctx) {
			available = append(available, p)
		}
	}
	return available
}
