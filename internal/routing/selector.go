// Package routing resolves which model serves a request and which
// candidates are tried when the primary fails irrecoverably.
package routing

import (
	"context"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/observability"
)

// Settings keys for model configuration.
const (
	modelKeyPrefix  = "model:"
	globalModelKey  = "model:default"
	modelSentinel   = "default" // per-mode value meaning "not configured"
	hardcodedModel  = "gpt-4o-mini"
)

// fallbackCandidates is the static, mode-independent fallback list,
// tried in order only after the primary fails irrecoverably.
var fallbackCandidates = []string{"gpt-4o-mini", "gpt-3.5-turbo"}

// Selector resolves the primary model id and the ordered fallback
// candidate list for a request.
type Selector struct {
	settings domain.SettingsStore
}

// NewSelector creates a selector backed by the given settings store.
// A nil store resolves compiled-in defaults only.
func NewSelector(settings domain.SettingsStore) *Selector {
	return &Selector{settings: settings}
}

// Primary resolves the model for a request: explicit request hint,
// then per-mode configured default, then global configured default,
// then the hardcoded constant.
func (s *Selector) Primary(ctx context.Context, req *domain.GenerationRequest) string {
	if req != nil && req.Model != "" {
		return req.Model
	}

	if req != nil {
		if model, ok := s.lookup(ctx, modelKeyPrefix+string(req.Mode)); ok && model != "" && model != modelSentinel {
			return model
		}
	}

	if model, ok := s.lookup(ctx, globalModelKey); ok && model != "" && model != modelSentinel {
		return model
	}

	return hardcodedModel
}

// Fallbacks returns the fallback candidates, de-duplicated and with the
// primary removed; it never re-lists a model the executor already tried.
func (s *Selector) Fallbacks(_ context.Context, primary string) []string {
	seen := map[string]struct{}{primary: {}}
	candidates := make([]string, 0, len(fallbackCandidates))
	for _, candidate := range fallbackCandidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func (s *Selector) lookup(ctx context.Context, key string) (string, bool) {
	if s.settings == nil {
		return "", false
	}

	value, ok, err := s.settings.Get(ctx, key)
	if err != nil {
		observability.FromContext(ctx).Warn("model settings lookup failed",
			observability.String("key", key),
			observability.Error(err))
		return "", false
	}
	return value, ok
}
