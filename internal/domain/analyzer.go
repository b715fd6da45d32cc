package domain

import (
	"regexp"
	"strings"
	"time"
)

// Era labels for the legal regime a question falls under.
const (
	EraPostTransition = "post-transition"
	EraPreTransition  = "pre-transition"
)

// Expertise labels.
const (
	ExpertiseProfessional = "professional"
	ExpertiseLayperson    = "layperson"
)

// Urgency labels.
const (
	UrgencyHigh   = "high"
	UrgencyNormal = "normal"
)

// Intent labels, in classification priority order.
const (
	IntentLitigationDefense   = "litigation-defense"
	IntentContractual         = "contractual"
	IntentCorporateCompliance = "corporate-compliance"
	IntentPropertyDispute     = "property-dispute"
	IntentFamilyLaw           = "family-law"
	IntentFinancialCrime      = "financial-crime"
	IntentGeneralAdvice       = "general-advice"
)

// eraTransitionDate is the date the renewed legal regime took effect.
var eraTransitionDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// eraYearPattern matches explicit references to post-transition years.
var eraYearPattern = regexp.MustCompile(`\b(2024|2025)\b`)

// Keyword tables. Classification is first-match-wins per category, in
// the order the tables are declared.
var (
	draftKeywords   = []string{"draft", "prepare", "generate", "write", "create agreement", "create a contract"}
	compareKeywords = []string{"compare", "difference", "versus", " vs "}
	riskKeywords    = []string{"check risk", "audit", "review", "analyze"}

	intentKeywords = []struct {
		intent   string
		keywords []string
	}{
		{IntentLitigationDefense, []string{"lawsuit", "court", "sue", "litigation", "appeal", "defend", "plaintiff", "defendant"}},
		{IntentContractual, []string{"contract", "agreement", "clause", "breach", "terms", "obligation"}},
		{IntentCorporateCompliance, []string{"compliance", "regulation", "license", "corporate", "charter", "incorporation"}},
		{IntentPropertyDispute, []string{"property", "real estate", "land", "lease", "tenant", "landlord", "ownership"}},
		{IntentFamilyLaw, []string{"divorce", "custody", "alimony", "marriage", "adoption", "inheritance"}},
		{IntentFinancialCrime, []string{"fraud", "money laundering", "embezzlement", "bribery", "tax evasion"}},
	}

	jargonLexicon = []string{
		"jurisdiction", "tort", "estoppel", "indemnity", "force majeure",
		"arbitration", "statute of limitations", "due diligence", "lien",
		"subrogation", "fiduciary", "injunction", "novation", "severability",
	}

	crisisKeywords = []string{
		"urgent", "emergency", "immediately", "asap", "threat",
		"arrested", "detained", "suicide", "violence",
	}
)

// QueryAnalyzer performs deterministic, rule-based classification of a
// request's mode, era, intent, expertise and urgency from its text.
type QueryAnalyzer struct {
	now func() time.Time
}

// NewQueryAnalyzer creates an analyzer using the wall clock for era
// resolution.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{now: time.Now}
}

// NewQueryAnalyzerAt creates an analyzer with an injected clock.
func NewQueryAnalyzerAt(now func() time.Time) *QueryAnalyzer {
	return &QueryAnalyzer{now: now}
}

// Analyze classifies text. It is a pure function of the text and the
// injected clock.
func (a *QueryAnalyzer) Analyze(text string) Analysis {
	lower := strings.ToLower(text)

	return Analysis{
		Mode:      a.classifyMode(lower),
		Era:       a.classifyEra(lower),
		Intent:    a.classifyIntent(lower),
		Expertise: a.classifyExpertise(lower),
		Urgency:   a.classifyUrgency(lower),
	}
}

func (a *QueryAnalyzer) classifyMode(lower string) Mode {
	if containsAny(lower, draftKeywords) {
		return ModeDraft
	}
	if containsAny(lower, compareKeywords) {
		return ModeCompare
	}
	if containsAny(lower, riskKeywords) {
		return ModeRiskCheck
	}
	return ModeAdvice
}

func (a *QueryAnalyzer) classifyEra(lower string) string {
	if eraYearPattern.MatchString(lower) {
		return EraPostTransition
	}
	if a.now().After(eraTransitionDate) {
		return EraPostTransition
	}
	return EraPreTransition
}

func (a *QueryAnalyzer) classifyIntent(lower string) string {
	for _, entry := range intentKeywords {
		if containsAny(lower, entry.keywords) {
			return entry.intent
		}
	}
	return IntentGeneralAdvice
}

func (a *QueryAnalyzer) classifyExpertise(lower string) string {
	const professionalThreshold = 2

	distinct := 0
	for _, term := range jargonLexicon {
		if strings.Contains(lower, term) {
			distinct++
			if distinct >= professionalThreshold {
				return ExpertiseProfessional
			}
		}
	}
	return ExpertiseLayperson
}

func (a *QueryAnalyzer) classifyUrgency(lower string) string {
	if containsAny(lower, crisisKeywords) {
		return UrgencyHigh
	}
	return UrgencyNormal
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
