// Package echo provides a testing provider that echoes back its input.
// It implements the domain.Provider interface without making external
// API calls, providing deterministic responses for testing and
// development purposes.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/observability"
)

const (
	providerName = "echo"
	modelName    = "echo4"
	chunkDelay   = 10 * time.Millisecond
)

// Provider implements the domain.Provider interface for echo testing.
type Provider struct {
	name            string
	supportedModels map[string]bool
}

// NewProvider creates a new echo provider.
// No configuration is required as this provider operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{
		name: providerName,
		supportedModels: map[string]bool{
			modelName: true,
		},
	}
}

// Generate returns the echoed request as the generated text.
func (p *Provider) Generate(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if !p.supportedModels[req.Model] {
		return nil, fmt.Errorf("%w: model %s is not supported by echo provider", domain.ErrModelUnavailable, req.Model)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	echoContent := buildEchoContent(req)

	promptTokens := countWords(req.Prompt)
	completionTokens := countWords(echoContent)

	logger.Debug("echo completed",
		observability.Int("prompt_tokens", promptTokens),
		observability.Int("completion_tokens", completionTokens),
	)

	return &domain.ProviderResult{
		Text:         echoContent,
		Model:        req.Model,
		Provider:     p.name,
		InputTokens:  promptTokens,
		OutputTokens: completionTokens,
	}, nil
}

// GenerateStream returns the echoed request as a word-by-word stream.
func (p *Provider) GenerateStream(ctx context.Context, req *domain.ProviderRequest) (<-chan domain.StreamChunk, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if !p.supportedModels[req.Model] {
		return nil, fmt.Errorf("%w: model %s is not supported by echo provider", domain.ErrModelUnavailable, req.Model)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("streaming echo request")

	echoContent := buildEchoContent(req)

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		words := strings.Fields(echoContent)
		if len(words) == 0 {
			select {
			case chunks <- domain.StreamChunk{Delta: "", Done: true, Error: nil}:
			case <-ctx.Done():
			}
			return
		}

		for i, word := range words {
			delta := word
			if i < len(words)-1 {
				delta += " "
			}

			select {
			case <-ctx.Done():
				return
			case chunks <- domain.StreamChunk{Delta: delta, Done: false, Error: nil}:
				time.Sleep(chunkDelay)
			}
		}

		select {
		case chunks <- domain.StreamChunk{Delta: "", Done: true, Error: nil}:
		case <-ctx.Done():
		}
	}()

	return chunks, nil
}

// CountTokens performs simple word-based token counting.
func (p *Provider) CountTokens(_ context.Context, _ string, text string) (int, error) {
	return countWords(text), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.supportedModels[model]
}

// SupportedModels returns a list of all models this provider supports.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(p.supportedModels))
	for model := range p.supportedModels {
		models = append(models, model)
	}
	return models
}

// buildEchoContent constructs the echo response from the request.
func buildEchoContent(req *domain.ProviderRequest) string {
	var builder strings.Builder

	if req.SystemInstruction != "" {
		builder.WriteString(fmt.Sprintf("[system]: %s\n", req.SystemInstruction))
	}
	for _, msg := range req.History {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	builder.WriteString(fmt.Sprintf("[user]: %s\n", req.Prompt))

	return builder.String()
}

func countWords(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
