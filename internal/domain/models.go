package domain

import "time"

// Mode identifies a named generation intent. It controls the system
// instruction, sampling temperature and the pricing rule applied to
// the request.
type Mode string

const (
	ModeAdvice             Mode = "advice"
	ModeDraft              Mode = "draft"
	ModeCompare            Mode = "compare"
	ModeRiskCheck          Mode = "risk_check"
	ModeDraftAnalysis      Mode = "draft_analysis"
	ModeHallucinationCheck Mode = "hallucination_check"
)

// Valid reports whether m is one of the known generation modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeAdvice, ModeDraft, ModeCompare, ModeRiskCheck, ModeDraftAnalysis, ModeHallucinationCheck:
		return true
	}
	return false
}

// Message represents a single turn of conversation history.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Attachment is an optional document supplied alongside the question.
type Attachment struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mime_type"`
}

// GenerationRequest represents a unified legal-generation request.
type GenerationRequest struct {
	UserID   string      `json:"user_id"`
	Mode     Mode        `json:"mode,omitempty"`
	Model    string      `json:"model,omitempty"` // explicit model hint
	Prompt   string      `json:"prompt"`
	Document *Attachment `json:"document,omitempty"`
	History  []Message   `json:"history,omitempty"`
	Language string      `json:"language,omitempty"`
}

// Analysis is the deterministic classification of a request.
type Analysis struct {
	Mode      Mode   `json:"mode"`
	Era       string `json:"era"`
	Intent    string `json:"intent"`
	Expertise string `json:"expertise"`
	Urgency   string `json:"urgency"`
}

// TokenCounts groups the three token counts that feed billing.
type TokenCounts struct {
	Input        int `json:"input"`
	Output       int `json:"output"`
	Verification int `json:"verification"`
}

// Total returns the sum of all three counts.
func (t TokenCounts) Total() int {
	return t.Input + t.Output + t.Verification
}

// CostBreakdown is the auditable billing record for a single request.
// Exactly one breakdown is produced per request, computed from whatever
// output text exists at the time billing runs.
type CostBreakdown struct {
	Tokens    TokenCounts `json:"tokens"`
	Total     int         `json:"total_tokens"`
	BaseRate  float64     `json:"base_rate"`
	Cost      float64     `json:"cost"`
	Model     string      `json:"model"`
	Mode      Mode        `json:"mode"`
	Estimated bool        `json:"estimated,omitempty"` // heuristic counter was used
}

// GenerationResult is a completed batch generation with its billing record.
type GenerationResult struct {
	Text       string        `json:"text"`
	Model      string        `json:"model"`
	Provider   string        `json:"provider"`
	Analysis   Analysis      `json:"analysis"`
	Cost       CostBreakdown `json:"cost"`
	Cached     bool          `json:"cached,omitempty"`
	FinishTime time.Time     `json:"finish_time"`
}

// StreamChunk represents a single streaming response fragment.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error error  `json:"error,omitempty"`
}

// StreamSession is a running streaming generation. Analysis is available
// before the first fragment. Billing delivers exactly one breakdown after
// the stream completes, errors or is cancelled; it is buffered so the
// producer never blocks on it. Cancel aborts the upstream stream.
type StreamSession struct {
	Analysis Analysis
	Chunks   <-chan StreamChunk
	Billing  <-chan CostBreakdown
	Cancel   func()
}

// RetrievedPassage is a reference passage returned by similarity search.
type RetrievedPassage struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// CorpusDocument is a stored reference document with its embedding.
type CorpusDocument struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding"`
}

// PricingType selects how a mode is billed.
type PricingType string

const (
	// PricingFixed charges a flat price per request, ignoring tokens.
	PricingFixed PricingType = "fixed"
	// PricingToken multiplies the model base rate by the rule price.
	PricingToken PricingType = "token"
)

// PricingRule is the per-mode billing policy.
type PricingRule struct {
	Type  PricingType `json:"type"`
	Price float64     `json:"price"`
}
