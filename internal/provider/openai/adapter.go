// Package openai adapts the OpenAI API to the domain.Provider interface
// using the official SDK. It normalizes SDK responses and errors into
// domain types so the resilience layer can classify failures.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/observability"
)

const providerName = "openai"

// supportedModels are the models this adapter serves by default.
var supportedModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
}

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	client   openai.Client
	name     string
	modelSet map[string]bool
}

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// The resilience layer owns retries; SDK retries would multiply
		// attempt budgets.
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	modelSet := make(map[string]bool, len(supportedModels))
	for _, model := range supportedModels {
		modelSet[model] = true
	}

	return &Provider{
		client:   openai.NewClient(opts...),
		name:     providerName,
		modelSet: modelSet,
	}, nil
}

// Generate sends a batch request and returns the complete text.
func (p *Provider) Generate(ctx context.Context, req *domain.ProviderRequest) (*domain.ProviderResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", domain.ErrValidation)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI API")

	resp, err := p.client.Chat.Completions.New(ctx, p.toParams(req))
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, normalizeError(err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	logger.Debug("OpenAI API call succeeded",
		observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return &domain.ProviderResult{
		Text:         content,
		Model:        string(resp.Model),
		Provider:     p.name,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// GenerateStream sends a request and returns the fragment stream.
// Fragments mirror upstream emission order; the channel closes when the
// stream ends or ctx is cancelled.
func (p *Provider) GenerateStream(ctx context.Context, req *domain.ProviderRequest) (<-chan domain.StreamChunk, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request cannot be nil", domain.ErrValidation)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI streaming API")

	stream := p.client.Chat.Completions.NewStreaming(ctx, p.toParams(req))

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)
		defer logger.Debug("OpenAI stream completed")

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta.Content
			done := chunk.Choices[0].FinishReason != ""

			select {
			case chunks <- domain.StreamChunk{Delta: delta, Done: done, Error: nil}:
			case <-ctx.Done():
				return
			}

			if done {
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			select {
			case chunks <- domain.StreamChunk{Delta: "", Done: false, Error: normalizeError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return chunks, nil
}

// CountTokens returns the exact token count for text using the local
// tokenizer matching the model's encoding.
func (p *Provider) CountTokens(_ context.Context, model, text string) (int, error) {
	return countTokens(model, text)
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.modelSet[model] || strings.HasPrefix(model, "gpt-")
}

// SupportedModels returns all models this provider serves.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, len(supportedModels))
	copy(models, supportedModels)
	return models
}

// toParams converts a domain request to SDK parameters. The system
// instruction leads, history follows in order, and the augmented prompt
// (with any inlined document) closes the conversation.
func (p *Provider) toParams(req *domain.ProviderRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)

	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}

	for _, msg := range req.History {
		switch msg.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(inlineDocument(req)))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	return params
}

// inlineDocument appends the attached document to the prompt: verbatim
// for text documents, base64 otherwise.
func inlineDocument(req *domain.ProviderRequest) string {
	if req.Document == nil || len(req.Document.Data) == 0 {
		return req.Prompt
	}

	if strings.HasPrefix(req.Document.MimeType, "text/") {
		return fmt.Sprintf("%s\n\n[attached document (%s)]\n%s",
			req.Prompt, req.Document.MimeType, string(req.Document.Data))
	}

	return fmt.Sprintf("%s\n\n[attached document (%s), base64]\n%s",
		req.Prompt, req.Document.MimeType, base64.StdEncoding.EncodeToString(req.Document.Data))
}

// normalizeError maps SDK errors onto the domain failure taxonomy.
func normalizeError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("OpenAI API call failed: %w", err)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Error())
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", domain.ErrUpstreamServer, apiErr.Error())
	case apiErr.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrModelUnavailable, apiErr.Error())
	case apiErr.StatusCode == http.StatusUnauthorized,
		apiErr.StatusCode == http.StatusForbidden,
		apiErr.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, apiErr.Error())
	default:
		return fmt.Errorf("OpenAI API call failed: %w", err)
	}
}
