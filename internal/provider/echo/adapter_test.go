package echo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/provider/echo"
)

func TestProvider_Generate(t *testing.T) {
	ctx := context.Background()
	provider := echo.NewProvider()

	t.Run("echoes the conversation", func(t *testing.T) {
		result, err := provider.Generate(ctx, &domain.ProviderRequest{
			Model:             "echo4",
			SystemInstruction: "be helpful",
			History:           []domain.Message{{Role: "user", Content: "earlier question"}},
			Prompt:            "current question",
		})

		require.NoError(t, err)
		require.Equal(t, "echo", result.Provider)
		require.Equal(t, "echo4", result.Model)
		require.Contains(t, result.Text, "[system]: be helpful")
		require.Contains(t, result.Text, "[user]: earlier question")
		require.Contains(t, result.Text, "[user]: current question")
		require.Positive(t, result.InputTokens)
		require.Positive(t, result.OutputTokens)
	})

	t.Run("nil request", func(t *testing.T) {
		result, err := provider.Generate(ctx, nil)
		require.Error(t, err)
		require.Nil(t, result)
	})

	t.Run("unsupported model", func(t *testing.T) {
		result, err := provider.Generate(ctx, &domain.ProviderRequest{Model: "gpt-4o", Prompt: "hi"})
		require.ErrorIs(t, err, domain.ErrModelUnavailable)
		require.Nil(t, result)
	})
}

func TestProvider_GenerateStream(t *testing.T) {
	ctx := context.Background()
	provider := echo.NewProvider()

	t.Run("streams word by word and finishes with done", func(t *testing.T) {
		chunks, err := provider.GenerateStream(ctx, &domain.ProviderRequest{
			Model:  "echo4",
			Prompt: "two words",
		})
		require.NoError(t, err)

		var text strings.Builder
		sawDone := false
		for chunk := range chunks {
			require.NoError(t, chunk.Error)
			text.WriteString(chunk.Delta)
			if chunk.Done {
				sawDone = true
			}
		}

		require.True(t, sawDone)
		require.Equal(t, "[user]: two words", text.String())
	})

	t.Run("unsupported model", func(t *testing.T) {
		chunks, err := provider.GenerateStream(ctx, &domain.ProviderRequest{Model: "nope", Prompt: "hi"})
		require.ErrorIs(t, err, domain.ErrModelUnavailable)
		require.Nil(t, chunks)
	})

	t.Run("cancellation stops the stream", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)

		chunks, err := provider.GenerateStream(cancelCtx, &domain.ProviderRequest{
			Model:  "echo4",
			Prompt: strings.Repeat("word ", 100),
		})
		require.NoError(t, err)

		<-chunks
		cancel()

		for range chunks {
			// drain until the producer notices the cancellation
		}
	})
}

func TestProvider_CountTokens(t *testing.T) {
	provider := echo.NewProvider()

	count, err := provider.CountTokens(context.Background(), "echo4", "three little words")
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestProvider_Metadata(t *testing.T) {
	ctx := context.Background()
	provider := echo.NewProvider()

	require.Equal(t, "echo", provider.Name())
	require.True(t, provider.IsModelSupported(ctx, "echo4"))
	require.False(t, provider.IsModelSupported(ctx, "gpt-4o"))
	require.Equal(t, []string{"echo4"}, provider.SupportedModels(ctx))
}
