package domain

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/lexgate/lexgate/internal/observability"
)

// Settings keys for dynamic pricing configuration.
const (
	pricingKeyPrefix = "pricing:"
	rateKeyPrefix    = "rate:"
)

// DefaultTokenRate is the base rate (currency per token) applied to
// models with no configured rate.
const DefaultTokenRate = 0.00005

// heuristicCharsPerToken drives the local token estimate used when the
// provider's exact counter is unavailable.
const heuristicCharsPerToken = 4

// defaultModelRates are the compiled-in base rates per model.
var defaultModelRates = map[string]float64{
	"gpt-4o":        0.00015,
	"gpt-4o-mini":   0.00005,
	"gpt-4-turbo":   0.0002,
	"gpt-4":         0.0003,
	"gpt-3.5-turbo": 0.00002,
}

// TokenCounter provides exact token counts. Provider satisfies it.
type TokenCounter interface {
	CountTokens(ctx context.Context, model, text string) (int, error)
}

// UsageMeter computes token counts and monetary cost from pricing
// configuration. It performs no side effects beyond the token-count
// calls it depends on; the balance ledger owns the actual debit.
type UsageMeter struct {
	counter  TokenCounter
	settings SettingsStore
}

// NewUsageMeter creates a meter. counter and settings may both be nil;
// the meter then estimates tokens and uses compiled-in rates.
func NewUsageMeter(counter TokenCounter, settings SettingsStore) *UsageMeter {
	return &UsageMeter{counter: counter, settings: settings}
}

// EstimateTokens is the local heuristic token count: ceil(chars / 4).
func EstimateTokens(text string) int {
	chars := utf8.RuneCountInString(text)
	return (chars + heuristicCharsPerToken - 1) / heuristicCharsPerToken
}

// CountTokens returns the exact count for text, falling back to the
// heuristic estimate when the counter fails. The second return reports
// whether the heuristic was used.
func (m *UsageMeter) CountTokens(ctx context.Context, model, text string) (int, bool) {
	if text == "" {
		return 0, false
	}

	if m.counter != nil {
		count, err := m.counter.CountTokens(ctx, model, text)
		if err == nil && count >= 0 {
			return count, false
		}
		if err != nil {
			observability.FromContext(ctx).Warn("exact token count failed, using heuristic",
				observability.String("model", model),
				observability.Error(err))
		}
	}

	return EstimateTokens(text), true
}

// Measure counts the three billable text segments and prices them.
// It never fails: counter errors degrade to the heuristic and pricing
// errors degrade to the default rate.
func (m *UsageMeter) Measure(ctx context.Context, model string, mode Mode, prompt, output, verification string) CostBreakdown {
	input, inEst := m.CountTokens(ctx, model, prompt)
	out, outEst := m.CountTokens(ctx, model, output)
	verif, verifEst := m.CountTokens(ctx, model, verification)

	counts := TokenCounts{Input: input, Output: out, Verification: verif}

	breakdown := CostBreakdown{
		Tokens:    counts,
		Total:     counts.Total(),
		BaseRate:  m.BaseRate(ctx, model),
		Cost:      m.ComputeCost(ctx, counts, mode, model),
		Model:     model,
		Mode:      mode,
		Estimated: inEst || outEst || verifEst,
	}
	return breakdown
}

// ComputeCost resolves the base rate for model and the pricing rule for
// mode and returns the deterministic, non-negative cost for counts.
func (m *UsageMeter) ComputeCost(ctx context.Context, counts TokenCounts, mode Mode, model string) float64 {
	total := sanitizeCount(counts.Input) + sanitizeCount(counts.Output) + sanitizeCount(counts.Verification)
	rate := m.BaseRate(ctx, model)

	rule, ok := m.pricingRule(ctx, mode)
	if ok && rule.Type == PricingFixed {
		// Token count is still recorded by the caller, but ignored here.
		return clampCost(sanitizeNumber(rule.Price))
	}

	multiplier := 1.0
	if ok && rule.Type == PricingToken {
		multiplier = sanitizeNumber(rule.Price)
	}

	return clampCost(float64(total) * rate * multiplier)
}

// BaseRate resolves the base rate for model: configured override, then
// compiled-in table, then the default rate.
func (m *UsageMeter) BaseRate(ctx context.Context, model string) float64 {
	if m.settings != nil {
		raw, ok, err := m.settings.Get(ctx, rateKeyPrefix+model)
		if err == nil && ok {
			if rate, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil && rate > 0 {
				return rate
			}
		}
	}

	if rate, ok := defaultModelRates[model]; ok {
		return rate
	}
	return DefaultTokenRate
}

func (m *UsageMeter) pricingRule(ctx context.Context, mode Mode) (PricingRule, bool) {
	if m.settings == nil {
		return PricingRule{}, false
	}

	raw, ok, err := m.settings.Get(ctx, pricingKeyPrefix+string(mode))
	if err != nil || !ok {
		return PricingRule{}, false
	}

	var rule PricingRule
	if unmarshalErr := json.Unmarshal([]byte(raw), &rule); unmarshalErr != nil {
		observability.FromContext(ctx).Warn("ignoring unparsable pricing rule",
			observability.String("mode", string(mode)),
			observability.Error(unmarshalErr))
		return PricingRule{}, false
	}

	if rule.Type != PricingFixed && rule.Type != PricingToken {
		return PricingRule{}, false
	}
	return rule, true
}

func sanitizeCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func sanitizeNumber(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func clampCost(cost float64) float64 {
	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0
	}
	return cost
}
