package domain

import (
	"context"
	"strconv"

	"github.com/lexgate/lexgate/internal/observability"
)

// Settings keys for dynamic prompt configuration.
const (
	promptKeyPrefix      = "prompt:"
	temperatureKeyPrefix = "temperature:"
)

// Hardcoded sampling temperatures per mode.
const (
	draftTemperature   = 0.1
	defaultTemperature = 0.2
)

// defaultInstructions are the compiled-in system instructions per mode,
// used when no override is configured.
var defaultInstructions = map[Mode]string{
	ModeAdvice: "You are an experienced attorney. Answer the user's legal question " +
		"accurately and cite the applicable statutes. Answer in the user's language. " +
		"State clearly when a question requires an in-person consultation.",
	ModeDraft: "You are a legal document drafter. Produce a complete, ready-to-sign " +
		"document matching the user's request. Output plain prose only, with no " +
		"structural markup of any kind.",
	ModeCompare: "You are a legal analyst. Compare the provisions the user names, " +
		"point by point, and state the practical consequences of each difference.",
	ModeRiskCheck: "You are a legal risk auditor. Identify every clause or fact in " +
		"the user's material that creates legal exposure, ordered by severity.",
	ModeDraftAnalysis: "You are a contract reviewer. Analyze the attached draft: " +
		"summarize its structure, flag missing mandatory provisions and unusual terms.",
	ModeHallucinationCheck: "You are a legal fact checker. Verify every statute, " +
		"case and legal claim in the text. Mark each as confirmed, unverifiable or wrong.",
}

// PromptResolver resolves the system instruction and temperature for a
// mode, preferring configured overrides over compiled-in defaults.
type PromptResolver struct {
	settings SettingsStore
}

// NewPromptResolver creates a resolver backed by the given store. A nil
// store resolves defaults only.
func NewPromptResolver(settings SettingsStore) *PromptResolver {
	return &PromptResolver{settings: settings}
}

// Instruction returns the system instruction for mode.
func (r *PromptResolver) Instruction(ctx context.Context, mode Mode) string {
	if override, ok := r.lookup(ctx, promptKeyPrefix+string(mode)); ok && override != "" {
		return override
	}
	if instruction, ok := defaultInstructions[mode]; ok {
		return instruction
	}
	return defaultInstructions[ModeAdvice]
}

// Temperature returns the sampling temperature for mode. A configured
// override wins; an unparsable override falls back to the default.
func (r *PromptResolver) Temperature(ctx context.Context, mode Mode) float64 {
	if raw, ok := r.lookup(ctx, temperatureKeyPrefix+string(mode)); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err == nil && value >= 0 {
			return value
		}
		observability.FromContext(ctx).Warn("ignoring unparsable temperature override",
			observability.String("mode", string(mode)),
			observability.String("value", raw))
	}

	if mode == ModeDraft {
		return draftTemperature
	}
	return defaultTemperature
}

func (r *PromptResolver) lookup(ctx context.Context, key string) (string, bool) {
	if r.settings == nil {
		return "", false
	}

	value, ok, err := r.settings.Get(ctx, key)
	if err != nil {
		observability.FromContext(ctx).Warn("settings lookup failed",
			observability.String("key", key),
			observability.Error(err))
		return "", false
	}
	return value, ok
}
