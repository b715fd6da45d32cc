package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	embeddingopenai "github.com/lexgate/lexgate/internal/embedding/openai"
	"github.com/lexgate/lexgate/internal/provider/openai"
)

// Config represents the gateway configuration.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Redis      RedisConfig
	OpenAI     openai.Config
	Embedding  embeddingopenai.Config
	Cache      CacheConfig
	Retrieval  RetrievalConfig
	Resilience ResilienceConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RedisConfig contains Redis connection settings. Redis backs the
// settings store, the balance ledger, the semantic cache index and the
// reference corpus.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
}

// CacheConfig controls the semantic response cache.
type CacheConfig struct {
	Enabled   bool    `env:"CACHE_ENABLED"              envDefault:"false"`
	IndexName string  `env:"CACHE_INDEX_NAME"           envDefault:"lexgate-cache"`
	Threshold float64 `env:"CACHE_SIMILARITY_THRESHOLD" envDefault:"0.95"`
}

// RetrievalConfig controls retrieval augmentation.
type RetrievalConfig struct {
	Enabled    bool    `env:"RETRIEVAL_ENABLED"    envDefault:"false"`
	IndexName  string  `env:"RETRIEVAL_INDEX_NAME" envDefault:"lexgate-corpus"`
	MaxResults int     `env:"RETRIEVAL_MAX_RESULTS" envDefault:"3"`
	MinScore   float64 `env:"RETRIEVAL_MIN_SCORE"   envDefault:"0.5"`
}

// ResilienceConfig bounds retry and fallback behavior.
type ResilienceConfig struct {
	MaxAttempts      int `env:"RESILIENCE_MAX_ATTEMPTS"      envDefault:"3"`
	FallbackAttempts int `env:"RESILIENCE_FALLBACK_ATTEMPTS" envDefault:"2"`
	BaseDelayMs      int `env:"RESILIENCE_BASE_DELAY_MS"     envDefault:"500"`
	MaxJitterMs      int `env:"RESILIENCE_MAX_JITTER_MS"     envDefault:"250"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Server     *ServerConfig
	CORS       *CORSConfig
	Redis      *RedisConfig
	OpenAI     *openai.Config
	Embedding  *embeddingopenai.Config
	Cache      *CacheConfig
	Retrieval  *RetrievalConfig
	Resilience *ResilienceConfig
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Out:        dig.Out{},
		Server:     &cfg.Server,
		CORS:       &cfg.CORS,
		Redis:      &cfg.Redis,
		OpenAI:     &cfg.OpenAI,
		Embedding:  &cfg.Embedding,
		Cache:      &cfg.Cache,
		Retrieval:  &cfg.Retrieval,
		Resilience: &cfg.Resilience,
	}
}
