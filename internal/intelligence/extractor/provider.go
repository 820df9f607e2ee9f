// Package extractor runs LLM completions against contract text and parses
// the structured extraction results.
package extractor

import (
	"context"

	"github.com/turtacn/CoverIQ-Intelligence/pkg/errors"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Request is one completion request.
type Request struct {
	SystemPrompt    string
	UserPrompt      string
	Model           string
	MaxOutputTokens int
	Temperature     float64

	// JSONMode asks the provider to constrain output to a JSON object where
	// supported; the fence-tolerant parser still handles providers that
	// ignore it.
	JSONMode bool
}

// Response is the completion text plus usage accounting where the provider
// reports it.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeProviderUnsupported, "unsupported model provider: "+name)
	}
	return p, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
