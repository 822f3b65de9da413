package provider

import (
	"context"
	"fmt"
)

// NoopRegistry is a Registry with no backing provider wired in: every
// GenerateCompletion call fails and every model reports unavailable. It
// lets a caller construct the full object graph (corectx.New) and
// exercise routing/caching/context logic before a concrete provider SDK
// is wired in, without standing up a fake network service.
type NoopRegistry struct{}

// NewNoopRegistry returns a Registry with zero configured providers.
func NewNoopRegistry() *NoopRegistry {
	return &NoopRegistry{}
}

func (NoopRegistry) GenerateCompletion(ctx context.Context, providerName, model string, messages []Message, params CompletionParams) (CompletionResult, error) {
	return CompletionResult{}, fmt.Errorf("provider %q: no backing implementation configured", providerName)
}

func (NoopRegistry) ValidateModel(ctx context.Context, providerName, model string) (bool, error) {
	return false, nil
}

func (NoopRegistry) ListModels(ctx context.Context, providerName string) ([]string, error) {
	return nil, nil
}

func (NoopRegistry) HealthCheck(ctx context.Context, providerName string) (bool, error) {
	return false, nil
}
