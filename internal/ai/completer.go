package ai

import (
	"context"

	"github.com/garnizeh/devcompanion/pkg/ollama"
)

// Completer is a single-shot text generation backend.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// OllamaCompleter generates text with a local Ollama model.
type OllamaCompleter struct {
	client      *ollama.Client
	model       string
	temperature float64
}

func NewOllamaCompleter(client *ollama.Client, model string, temperature float64) *OllamaCompleter {
	return &OllamaCompleter{client: client, model: model, temperature: temperature}
}

func (c *OllamaCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	res, err := c.client.Generate(ctx, c.model, prompt,
		ollama.WithSystem(system),
		ollama.WithTemperature(c.temperature))
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

func (c *OllamaCompleter) Close() error { return c.client.Close() }
