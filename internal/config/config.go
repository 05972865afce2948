// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Environment string

const (
	EnvLocal       Environment = "local"
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

func (e Environment) IsProduction() bool {
	return e == EnvProduction
}

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Session backends.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
)

// Config is the full service configuration. Credential fields accept a
// literal value or an "ssm:<parameter>" reference.
type Config struct {
	Env Environment `envconfig:"APP_ENV" default:"local"`

	HTTP      HTTPConfig
	LLM       LLMConfig
	Knowledge KnowledgeConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
	Chat      ChatConfig
}

type HTTPConfig struct {
	Addr         string        `envconfig:"HTTP_ADDR" default:":8000"`
	AllowOrigins []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
}

type LLMConfig struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai"`
	Model       string  `envconfig:"LLM_MODEL"`
	Temperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"1024"`
	BaseURL     string  `envconfig:"LLM_BASE_URL"`

	OpenAIKey    string `envconfig:"OPENAI_API_KEY"`
	GroqKey      string `envconfig:"GROQ_API_KEY"`
	GeminiKey    string `envconfig:"GEMINI_API_KEY"`
	AnthropicKey string `envconfig:"ANTHROPIC_API_KEY"`
}

// APIKey returns the credential configured for the selected provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case ProviderGroq:
		return c.GroqKey
	case ProviderGemini:
		return c.GeminiKey
	case ProviderAnthropic:
		return c.AnthropicKey
	default:
		return c.OpenAIKey
	}
}

type KnowledgeConfig struct {
	ProfileSource  string `envconfig:"PROFILE_SOURCE" default:"data/personal_info.json"`
	ProjectsSource string `envconfig:"PROJECTS_SOURCE" default:"data/projects.json"`
	PromptTemplate string `envconfig:"PROMPT_TEMPLATE"`
}

type RetrievalConfig struct {
	ResumeSource    string `envconfig:"RESUME_SOURCE" default:"data/resume.txt"`
	ChunkSize       int    `envconfig:"CHUNK_SIZE" default:"1000"`
	ChunkOverlap    int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK            int    `envconfig:"RETRIEVAL_TOP_K" default:"3"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingAPIKey string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingURL    string `envconfig:"EMBEDDING_BASE_URL"`
}

type SessionConfig struct {
	Backend string        `envconfig:"SESSION_BACKEND" default:"memory"`
	TTL     time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	Table string `envconfig:"SESSION_TABLE"`

	RedisURL          string `envconfig:"REDIS_URL"`
	RedisReadTimeout  int    `envconfig:"REDIS_READ_TIMEOUT" default:"3"`
	RedisWriteTimeout int    `envconfig:"REDIS_WRITE_TIMEOUT" default:"3"`
	RedisDialTimeout  int    `envconfig:"REDIS_DIAL_TIMEOUT" default:"5"`
}

type ChatConfig struct {
	MaxMessageLength int `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: process environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = Environment(strings.ToLower(strings.TrimSpace(string(c.Env))))
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
}

// Validate rejects settings no component could run with. Missing
// credentials are not an error here: the chat degrades instead.
func (c Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGroq, ProviderGemini, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLM.Provider))
	}
	switch c.Session.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if strings.TrimSpace(c.Session.Table) == "" {
			errs = append(errs, errors.New("config: SESSION_TABLE is required for the dynamodb backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.Session.RedisURL) == "" {
			errs = append(errs, errors.New("config: REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown SESSION_BACKEND %q", c.Session.Backend))
	}
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, errors.New("config: CHUNK_SIZE must be positive"))
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, errors.New("config: CHUNK_OVERLAP must be in [0, CHUNK_SIZE)"))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, errors.New("config: RETRIEVAL_TOP_K must be positive"))
	}
	if c.Chat.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("config: MAX_MESSAGE_LENGTH must be positive"))
	}
	return errors.Join(errs...)
}
