package routing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/routing"
)

func TestSelector_Primary(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit request hint wins", func(t *testing.T) {
		settings := domain.NewInMemorySettings()
		require.NoError(t, settings.Set(ctx, "model:advice", "gpt-4o"))

		selector := routing.NewSelector(settings)
		req := &domain.GenerationRequest{Mode: domain.ModeAdvice, Model: "gpt-4-turbo"}

		require.Equal(t, "gpt-4-turbo", selector.Primary(ctx, req))
	})

	t.Run("per-mode configured default", func(t *testing.T) {
		settings := domain.NewInMemorySettings()
		require.NoError(t, settings.Set(ctx, "model:draft", "gpt-4o"))

		selector := routing.NewSelector(settings)
		req := &domain.GenerationRequest{Mode: domain.ModeDraft}

		require.Equal(t, "gpt-4o", selector.Primary(ctx, req))
	})

	t.Run("global default when mode unset", func(t *testing.T) {
		settings := domain.NewInMemorySettings()
		require.NoError(t, settings.Set(ctx, "model:default", "gpt-4"))

		selector := routing.NewSelector(settings)
		req := &domain.GenerationRequest{Mode: domain.ModeAdvice}

		require.Equal(t, "gpt-4", selector.Primary(ctx, req))
	})

	t.Run("sentinel value means not configured", func(t *testing.T) {
		settings := domain.NewInMemorySettings()
		require.NoError(t, settings.Set(ctx, "model:advice", "default"))

		selector := routing.NewSelector(settings)
		req := &domain.GenerationRequest{Mode: domain.ModeAdvice}

		require.Equal(t, "gpt-4o-mini", selector.Primary(ctx, req))
	})

	t.Run("hardcoded fallback without settings", func(t *testing.T) {
		selector := routing.NewSelector(nil)
		req := &domain.GenerationRequest{Mode: domain.ModeAdvice}

		require.Equal(t, "gpt-4o-mini", selector.Primary(ctx, req))
	})

	t.Run("nil request resolves the global chain", func(t *testing.T) {
		selector := routing.NewSelector(nil)
		require.Equal(t, "gpt-4o-mini", selector.Primary(ctx, nil))
	})
}

func TestSelector_Fallbacks(t *testing.T) {
	ctx := context.Background()
	selector := routing.NewSelector(nil)

	t.Run("excludes the primary", func(t *testing.T) {
		fallbacks := selector.Fallbacks(ctx, "gpt-4o-mini")
		require.Equal(t, []string{"gpt-3.5-turbo"}, fallbacks)
	})

	t.Run("full list for an unrelated primary", func(t *testing.T) {
		fallbacks := selector.Fallbacks(ctx, "gpt-4o")
		require.Equal(t, []string{"gpt-4o-mini", "gpt-3.5-turbo"}, fallbacks)
	})
}
