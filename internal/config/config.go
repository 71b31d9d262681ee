package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureJWTSecret = "supersecretkey"

// Providers understood by the analysis engine.
const (
	ProviderStub    = "stub"
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
)

type Config struct {
	Addr              string        `yaml:"addr"`
	Env               string        `yaml:"env"`
	LogLevel          string        `yaml:"log_level"`
	JWTSecret         string        `yaml:"jwt_secret"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	APITimeout        time.Duration `yaml:"timeout"`
	TokenDuration     time.Duration `yaml:"token_duration"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	OTELEndpoint      string        `yaml:"otel_endpoint"`

	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	MaxConcurrentJobs  int           `yaml:"max_concurrent_jobs"`
	JobTTL             time.Duration `yaml:"job_ttl"`
	JobCleanupInterval time.Duration `yaml:"job_cleanup_interval"`
	HistoryWindow      int           `yaml:"history_window"`

	EngineConfig EngineConfig  `yaml:"engine"`
	Ollama       OllamaConfig  `yaml:"ollama"`
	OpenAI       OpenAIConfig  `yaml:"openai"`
	Bedrock      BedrockConfig `yaml:"bedrock"`
}

type EngineConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	SchemaPath  string        `yaml:"schema_path"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	DefaultModelNames       []string      `yaml:"models"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type BedrockConfig struct {
	Region    string `yaml:"region"`
	MaxTokens int    `yaml:"max_tokens"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:              getEnv("COMPANION_ADDR", ":8000"),
		Env:               getEnv("COMPANION_ENV", "development"),
		LogLevel:          getEnv("COMPANION_LOG_LEVEL", "info"),
		JWTSecret:         getEnv("COMPANION_JWT_SECRET", insecureJWTSecret),
		AdminPasswordHash: getEnv("COMPANION_ADMIN_PASSWORD_HASH", ""),
		APITimeout:        getEnvDuration("COMPANION_API_TIMEOUT", 60*time.Second),
		TokenDuration:     getEnvDuration("COMPANION_TOKEN_DURATION", time.Hour),
		CORSOrigins:       getEnvList("COMPANION_CORS_ORIGINS", []string{"*"}),
		OTELEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		RateLimitPerMinute: getEnvInt("COMPANION_RATE_LIMIT_PER_MINUTE", 10),
		MaxConcurrentJobs:  getEnvInt("COMPANION_MAX_CONCURRENT_JOBS", 100),
		JobTTL:             getEnvDuration("COMPANION_JOB_TTL", time.Hour),
		JobCleanupInterval: getEnvDuration("COMPANION_JOB_CLEANUP_INTERVAL", 10*time.Minute),
		HistoryWindow:      getEnvInt("COMPANION_HISTORY_WINDOW", 10),

		EngineConfig: EngineConfig{
			Provider:    getEnv("COMPANION_PROVIDER", ProviderStub),
			Model:       getEnv("MODEL", "gpt-4o-mini"),
			Timeout:     getEnvDuration("COMPANION_ANALYSIS_TIMEOUT", 25*time.Second),
			Temperature: 0.2,
			SchemaPath:  getEnv("COMPANION_SCHEMA_PATH", ""),
		},
		Ollama: OllamaConfig{
			BaseURL:                 getEnv("OLLAMA_URL", "http://localhost:11434"),
			Timeout:                 30 * time.Second,
			Retries:                 2,
			Backoff:                 500 * time.Millisecond,
			CircuitFailureThreshold: 5,
			CircuitReset:            30 * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Bedrock: BedrockConfig{
			Region:    getEnv("AWS_REGION", "us-east-1"),
			MaxTokens: 1024,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 1000 {
		return fmt.Errorf("config: rate_limit_per_minute must be between 1 and 1000, got %d", c.RateLimitPerMinute)
	}
	if c.MaxConcurrentJobs < 1 || c.MaxConcurrentJobs > 1000 {
		return fmt.Errorf("config: max_concurrent_jobs must be between 1 and 1000, got %d", c.MaxConcurrentJobs)
	}
	if c.EngineConfig.Timeout <= 0 {
		return fmt.Errorf("config: engine timeout must be positive")
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("config: job_ttl must be positive")
	}
	known := []string{ProviderStub, ProviderOllama, ProviderOpenAI, ProviderBedrock}
	if !slices.Contains(known, c.EngineConfig.Provider) {
		return fmt.Errorf("config: unknown engine provider %q", c.EngineConfig.Provider)
	}
	if c.EngineConfig.Provider != ProviderStub && c.EngineConfig.Model == "" {
		return fmt.Errorf("config: engine model is required for provider %q", c.EngineConfig.Provider)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && !c.IsDevelopment() {
		return fmt.Errorf("config: refusing the default jwt_secret outside development")
	}

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = 30 * time.Second
	}
	if c.Ollama.Retries == 0 {
		c.Ollama.Retries = 2
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = 500 * time.Millisecond
	}
	if c.Bedrock.MaxTokens <= 0 {
		c.Bedrock.MaxTokens = 1024
	}

	return nil
}

// IsDevelopment reports whether the service runs in a local development environment.
func (c *Config) IsDevelopment() bool {
	env := c.Env
	if v := os.Getenv("COMPANION_ENV"); v != "" {
		env = v
	}
	return env == "" || env == "development"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
