package ollama

import (
	"time"

	"github.com/garnizeh/devcompanion/internal/config"
)

// DefaultConfig returns the settings for a local Ollama daemon.
func DefaultConfig() config.OllamaConfig {
	return config.OllamaConfig{
		BaseURL:                 "http://localhost:11434",
		DefaultModelNames:       []string{"qwen2.5-coder:7b", "llama3"},
		Timeout:                 30 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}
