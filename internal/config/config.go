// Package config loads process settings from an optional .env file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// NumClusters is K. Left at zero when unset; the pipeline rejects that.
	NumClusters int   `envconfig:"N_CLUSTERS"`
	ClusterSeed int64 `envconfig:"CLUSTER_SEED" default:"0"`
	Recluster   bool  `envconfig:"RECLUSTER" default:"false"`

	LLMProvider      string `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMModel         string `envconfig:"LLM_MODEL" default:"z-ai/glm-4.5-air:free"`
	LLMBaseURL       string `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`

	HFURL    string `envconfig:"HF_URL" default:"https://api-inference.huggingface.co/models/BAAI/bge-small-en-v1.5"`
	HFAPIKey string `envconfig:"HF_API_KEY"`

	HNURL      string `envconfig:"HN_URL" default:"https://hacker-news.firebaseio.com/v0"`
	HNTopLimit int    `envconfig:"HN_TOP_LIMIT" default:"100"`

	Port        int           `envconfig:"PORT" default:"8080"`
	FrontendURL string        `envconfig:"FRONTEND_URL"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load reads .env when present, then the environment. Variables already set
// in the environment win over the file.
func Load() (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)
	if cfg.LLMProvider != ProviderOpenAI && cfg.LLMProvider != ProviderAnthropic {
		return Config{}, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	return cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetupLogger installs a JSON slog handler as the process default.
func (c Config) SetupLogger() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: c.SlogLevel()})))
}
