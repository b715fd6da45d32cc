package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexgate/lexgate/internal/observability"
	"github.com/lexgate/lexgate/internal/resilience"
)

// cacheTTL bounds how long a generated answer is served from cache.
const cacheTTL = 1 * time.Hour

// Event types published by the pipeline.
const (
	EventTransactionState = "transaction.state"
	EventAnalysis         = "generation.analysis"
	EventBilled           = "generation.billed"
)

// PipelineService orchestrates a generation request end to end:
// classification, balance pre-check, cache lookup, prompt resolution,
// retrieval augmentation, resilient model execution and usage billing.
type PipelineService struct {
	registry  ProviderRegistry
	planner   ModelPlanner
	analyzer  *QueryAnalyzer
	prompts   *PromptResolver
	retrieval *RetrievalEngine
	meter     *UsageMeter
	cache     ResponseCache
	ledger    BalanceLedger
	events    EventPublisher
	policy    resilience.Policy
}

// NewPipelineService creates the pipeline (DI constructor). retrieval,
// cache, ledger and events may be nil; the matching stage is skipped.
func NewPipelineService(
	registry ProviderRegistry,
	planner ModelPlanner,
	analyzer *QueryAnalyzer,
	prompts *PromptResolver,
	retrieval *RetrievalEngine,
	meter *UsageMeter,
	cache ResponseCache,
	ledger BalanceLedger,
	events EventPublisher,
) *PipelineService {
	return &PipelineService{
		registry:  registry,
		planner:   planner,
		analyzer:  analyzer,
		prompts:   prompts,
		retrieval: retrieval,
		meter:     meter,
		cache:     cache,
		ledger:    ledger,
		events:    events,
		policy:    resilience.DefaultPolicy(ClassifyFailure),
	}
}

// SetPolicy overrides the resilience policy; intended for construction
// time only, before the service handles requests.
func (p *PipelineService) SetPolicy(policy resilience.Policy) {
	if policy.Classify == nil {
		policy.Classify = ClassifyFailure
	}
	p.policy = policy
}

// requestPlan carries the per-request state assembled before execution.
type requestPlan struct {
	req      *GenerationRequest
	tx       *Transaction
	analysis Analysis

	instruction string
	temperature float64
	prompt      string // augmented prompt
	candidates  []string
}

// Generate runs a batch generation and returns the complete text with
// its cost breakdown.
func (p *PipelineService) Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error) {
	plan, ctx, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	logger := observability.FromContext(ctx)

	// An identical prior request bypasses the pipeline and is not
	// re-billed.
	if cached := p.cachedResult(ctx, req); cached != nil {
		logger.Info("cache hit, bypassing generation pipeline",
			observability.Float64("similarity", cached.SimilarityScore))
		result := *cached.Result
		result.Cached = true
		result.Analysis = plan.analysis
		return &result, nil
	}

	if err := p.assemble(ctx, plan); err != nil {
		return nil, err
	}

	p.transition(ctx, plan.tx, TxAuthorized)
	p.transition(ctx, plan.tx, TxGenerating)

	providerResult, model, err := resilience.Execute(ctx, p.policy, plan.candidates,
		func(ctx context.Context, model string) (*ProviderResult, error) {
			return p.callProvider(ctx, model, plan)
		})
	if err != nil {
		// No billable text exists in this path; nothing is charged.
		if errors.Is(err, resilience.ErrExhausted) {
			err = Unavailable(err)
		}
		logger.Error("generation failed", observability.Error(err))
		return nil, err
	}

	text := SanitizeForMode(plan.req.Mode, providerResult.Text)
	p.transition(ctx, plan.tx, TxCompleted)

	cost := p.bill(ctx, plan, model, text)

	result := &GenerationResult{
		Text:       text,
		Model:      model,
		Provider:   providerResult.Provider,
		Analysis:   plan.analysis,
		Cost:       cost,
		FinishTime: time.Now(),
	}

	p.storeInCache(ctx, req, result)

	return result, nil
}

// GenerateStream runs a streaming generation. The returned session
// exposes the analysis metadata before the first fragment, the fragment
// stream, a one-time billing summary delivered after completion or
// cancellation, and a cancel function that closes the upstream stream.
func (p *PipelineService) GenerateStream(ctx context.Context, req *GenerationRequest) (*StreamSession, error) {
	plan, ctx, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.assemble(ctx, plan); err != nil {
		return nil, err
	}

	p.transition(ctx, plan.tx, TxAuthorized)
	p.transition(ctx, plan.tx, TxGenerating)

	streamCtx, cancel := context.WithCancel(ctx)

	// Resilience applies to opening the stream only. A stream is
	// non-restartable: once fragments flow, a failure is partial, never
	// a retry, or the consumer could see duplicated text.
	upstream, model, err := resilience.Execute(streamCtx, p.policy, plan.candidates,
		func(ctx context.Context, model string) (<-chan StreamChunk, error) {
			provider, getErr := p.registry.GetByModel(ctx, model)
			if getErr != nil {
				return nil, getErr
			}
			return provider.GenerateStream(ctx, plan.providerRequest(model))
		})
	if err != nil {
		cancel()
		if errors.Is(err, resilience.ErrExhausted) {
			err = Unavailable(err)
		}
		observability.FromContext(ctx).Error("stream open failed", observability.Error(err))
		return nil, err
	}

	if p.events != nil {
		p.events.Publish(ctx, EventAnalysis, map[string]interface{}{
			"transaction_id": plan.tx.ID,
			"mode":           string(plan.analysis.Mode),
			"era":            plan.analysis.Era,
			"intent":         plan.analysis.Intent,
			"expertise":      plan.analysis.Expertise,
			"urgency":        plan.analysis.Urgency,
		})
	}

	chunks := make(chan StreamChunk)
	billing := make(chan CostBreakdown, 1)

	go p.pumpStream(streamCtx, plan, model, upstream, chunks, billing)

	return &StreamSession{
		Analysis: plan.analysis,
		Chunks:   chunks,
		Billing:  billing,
		Cancel:   cancel,
	}, nil
}

// ComputeCost prices the given token counts for a mode and model. Pure
// and independently callable; it never charges anything.
func (p *PipelineService) ComputeCost(ctx context.Context, counts TokenCounts, mode Mode, model string) float64 {
	return p.meter.ComputeCost(ctx, counts, mode, model)
}

// prepare validates the request, classifies it, opens the transaction
// and pre-checks the balance.
func (p *PipelineService) prepare(ctx context.Context, req *GenerationRequest) (*requestPlan, context.Context, error) {
	if req == nil {
		return nil, ctx, fmt.Errorf("%w: request cannot be nil", ErrValidation)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ctx, fmt.Errorf("%w: prompt cannot be empty", ErrValidation)
	}
	if req.Mode != "" && !req.Mode.Valid() {
		return nil, ctx, fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}

	analysis := p.analyzer.Analyze(req.Prompt)
	if req.Mode == "" {
		req.Mode = analysis.Mode
	} else {
		analysis.Mode = req.Mode
	}

	ctx = observability.WithMode(ctx, string(req.Mode))
	if req.UserID != "" {
		ctx = observability.WithUserID(ctx, req.UserID)
	}

	tx := NewTransaction(req.UserID)
	p.publishState(ctx, tx)

	if p.ledger != nil && req.UserID != "" {
		balance, err := p.ledger.Balance(ctx, req.UserID)
		if err != nil {
			observability.FromContext(ctx).Warn("balance check failed, allowing request",
				observability.Error(err))
		} else if balance <= 0 {
			p.transition(ctx, tx, TxInsufficientFunds)
			return nil, ctx, fmt.Errorf("%w: balance is %.4f", ErrInsufficientFunds, balance)
		}
	}

	return &requestPlan{req: req, tx: tx, analysis: analysis}, ctx, nil
}

// assemble resolves the prompt, retrieval context and model candidates.
func (p *PipelineService) assemble(ctx context.Context, plan *requestPlan) error {
	plan.instruction = p.prompts.Instruction(ctx, plan.req.Mode)
	plan.temperature = p.prompts.Temperature(ctx, plan.req.Mode)

	ragContext := ""
	if p.retrieval != nil {
		ragContext = p.retrieval.BuildContext(ctx, plan.req.Prompt)
	}
	plan.prompt = buildAugmentedPrompt(plan.req, plan.analysis, ragContext)

	primary := p.planner.Primary(ctx, plan.req)
	plan.candidates = append([]string{primary}, p.planner.Fallbacks(ctx, primary)...)

	return nil
}

func (p *PipelineService) callProvider(ctx context.Context, model string, plan *requestPlan) (*ProviderResult, error) {
	provider, err := p.registry.GetByModel(ctx, model)
	if err != nil {
		return nil, err
	}

	ctx = observability.WithProvider(ctx, provider.Name())
	ctx = observability.WithModel(ctx, model)

	return provider.Generate(ctx, plan.providerRequest(model))
}

// pumpStream forwards upstream fragments to the consumer, sanitizing
// draft output per fragment, and bills whatever text was actually
// delivered once the stream ends, fails or is cancelled.
func (p *PipelineService) pumpStream(
	ctx context.Context,
	plan *requestPlan,
	model string,
	upstream <-chan StreamChunk,
	chunks chan<- StreamChunk,
	billing chan<- CostBreakdown,
) {
	defer close(billing)
	defer close(chunks)

	var accumulated strings.Builder
	delivered := 0
	partial := false

loop:
	for {
		select {
		case <-ctx.Done():
			partial = true
			break loop

		case chunk, ok := <-upstream:
			if !ok {
				break loop
			}

			if chunk.Error != nil {
				partial = true
				streamErr := &PartialStreamError{Err: chunk.Error, Delivered: delivered}
				select {
				case chunks <- StreamChunk{Delta: "", Done: false, Error: streamErr}:
				case <-ctx.Done():
				}
				break loop
			}

			delta := SanitizeForMode(plan.req.Mode, chunk.Delta)
			if delta == "" && !chunk.Done {
				continue
			}

			select {
			case chunks <- StreamChunk{Delta: delta, Done: chunk.Done, Error: nil}:
				accumulated.WriteString(delta)
				if delta != "" {
					delivered++
				}
			case <-ctx.Done():
				partial = true
				break loop
			}

			if chunk.Done {
				break loop
			}
		}
	}

	// Billing still runs after cancellation, on the fragments the
	// consumer actually received.
	billCtx := context.WithoutCancel(ctx)

	state := TxCompleted
	if partial {
		state = TxPartial
	}
	p.transition(billCtx, plan.tx, state)

	cost := p.bill(billCtx, plan, model, accumulated.String())
	billing <- cost
}

// bill meters the request, debits the ledger and settles the
// transaction. It never fails: metering problems degrade to a zero
// cost rather than discarding a response already produced.
func (p *PipelineService) bill(ctx context.Context, plan *requestPlan, model, output string) CostBreakdown {
	cost := p.meter.Measure(ctx, model, plan.req.Mode, plan.prompt, output, "")

	if p.ledger != nil && plan.req.UserID != "" && cost.Cost > 0 {
		if err := p.ledger.Debit(ctx, plan.req.UserID, cost.Cost); err != nil {
			observability.FromContext(ctx).Error("ledger debit failed",
				observability.Float64("amount", cost.Cost),
				observability.Error(err))
		}
	}

	p.transition(ctx, plan.tx, TxBilled)

	if p.events != nil {
		p.events.Publish(ctx, EventBilled, map[string]interface{}{
			"transaction_id": plan.tx.ID,
			"model":          model,
			"mode":           string(plan.req.Mode),
			"total_tokens":   cost.Total,
			"cost":           cost.Cost,
			"estimated":      cost.Estimated,
		})
	}

	return cost
}

func (p *PipelineService) cachedResult(ctx context.Context, req *GenerationRequest) *CachedResult {
	if p.cache == nil {
		return nil
	}

	cached, err := p.cache.Get(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			observability.FromContext(ctx).Warn("cache get failed, continuing without cache",
				observability.Error(err))
		}
		return nil
	}
	if cached == nil || cached.Result == nil {
		return nil
	}
	return cached
}

func (p *PipelineService) storeInCache(ctx context.Context, req *GenerationRequest, result *GenerationResult) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, req, result, cacheTTL); err != nil {
		observability.FromContext(ctx).Warn("failed to store in cache",
			observability.Error(err))
	}
}

func (p *PipelineService) transition(ctx context.Context, tx *Transaction, state TxState) {
	if err := tx.To(state); err != nil {
		observability.FromContext(ctx).Warn("transaction transition rejected",
			observability.Error(err))
		return
	}
	p.publishState(ctx, tx)
}

func (p *PipelineService) publishState(ctx context.Context, tx *Transaction) {
	if p.events == nil {
		return
	}
	p.events.Publish(ctx, EventTransactionState, map[string]interface{}{
		"transaction_id": tx.ID,
		"state":          string(tx.State),
	})
}

// providerRequest builds the upstream call input for one candidate.
func (plan *requestPlan) providerRequest(model string) *ProviderRequest {
	return &ProviderRequest{
		Model:             model,
		SystemInstruction: plan.instruction,
		Temperature:       plan.temperature,
		History:           plan.req.History,
		Prompt:            plan.prompt,
		Document:          plan.req.Document,
	}
}

// buildAugmentedPrompt concatenates the original question, the injected
// classification metadata and the retrieved reference context.
func buildAugmentedPrompt(req *GenerationRequest, analysis Analysis, ragContext string) string {
	var builder strings.Builder
	builder.WriteString(req.Prompt)

	fmt.Fprintf(&builder, "\n\n[classification: era=%s intent=%s expertise=%s urgency=%s",
		analysis.Era, analysis.Intent, analysis.Expertise, analysis.Urgency)
	if req.Language != "" {
		fmt.Fprintf(&builder, " language=%s", req.Language)
	}
	builder.WriteString("]")

	if ragContext != "" {
		builder.WriteString("\n\n")
		builder.WriteString(ragContext)
	}

	return builder.String()
}
