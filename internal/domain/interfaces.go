package domain

import "context"

// ProviderRequest is the fully resolved input for a single upstream call.
type ProviderRequest struct {
	Model             string
	SystemInstruction string
	Temperature       float64
	History           []Message
	Prompt            string
	Document          *Attachment
}

// ProviderResult is a normalized batch response from an upstream provider.
type ProviderResult struct {
	Text         string
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
}

// Provider represents an upstream generation provider.
type Provider interface {
	// Generate sends a batch request and returns the complete text.
	Generate(ctx context.Context, req *ProviderRequest) (*ProviderResult, error)

	// GenerateStream sends a request and returns an ordered,
	// non-restartable sequence of text fragments. The channel is closed
	// by the provider when the stream ends or ctx is cancelled.
	GenerateStream(ctx context.Context, req *ProviderRequest) (<-chan StreamChunk, error)

	// CountTokens returns the provider-exact token count for text.
	// Callers must fall back to a local estimate on error.
	CountTokens(ctx context.Context, model, text string) (int, error)

	// Name returns the provider identifier.
	Name() string

	// IsModelSupported checks if the provider supports the given model.
	IsModelSupported(ctx context.Context, model string) bool

	// SupportedModels returns all models this provider serves.
	SupportedModels(ctx context.Context) []string
}

// ProviderRegistry manages available providers and maps models to them.
type ProviderRegistry interface {
	Register(ctx context.Context, provider Provider) error
	Get(ctx context.Context, providerName string) (Provider, error)
	List(ctx context.Context) ([]string, error)

	// GetByModel retrieves the provider serving the given model id.
	// Returns an error wrapping ErrModelUnavailable when none does.
	GetByModel(ctx context.Context, model string) (Provider, error)
}

// ModelPlanner resolves the primary model for a request and the ordered
// fallback candidates tried after the primary fails irrecoverably.
type ModelPlanner interface {
	Primary(ctx context.Context, req *GenerationRequest) string
	Fallbacks(ctx context.Context, primary string) []string
}

// EmbeddingGenerator creates vector embeddings from text.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text string) ([]float64, error)
	Name() string
	Dimension() int
}

// CorpusStore holds the reference corpus used for retrieval augmentation.
type CorpusStore interface {
	// ListAll loads the entire corpus for local similarity scoring.
	ListAll(ctx context.Context) ([]CorpusDocument, error)

	// SimilaritySearch performs a server-side search, returning up to
	// limit passages ordered by descending similarity.
	SimilaritySearch(ctx context.Context, embedding []float64, limit int) ([]RetrievedPassage, error)
}

// SettingsStore is the dynamic configuration store: prompts, pricing
// rules, model rates and defaults. Values are untyped strings parsed
// into typed variants at the consuming boundary.
type SettingsStore interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	Set(ctx context.Context, key, value string) error
}

// BalanceLedger owns user balances. The pipeline pre-checks the balance
// and debits after billing; the ledger owns the atomic mutation.
type BalanceLedger interface {
	Balance(ctx context.Context, userID string) (float64, error)
	Debit(ctx context.Context, userID string, amount float64) error
}

// EventPublisher publishes out-of-band events for observability.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
