package openai

// Config contains OpenAI provider configuration. SDK-level retries are
// disabled; the resilience layer owns retry and fallback behavior.
type Config struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Timeout int    `env:"OPENAI_TIMEOUT"  envDefault:"60"`
}
