package ai

import (
	"context"
	"strings"

	"github.com/garnizeh/devcompanion/pkg/models"
)

// Stub is a deterministic Gateway used when no model backend is configured.
// It never finds issues and never rewrites code, so reviews and fixes made
// through it are placeholders.
type Stub struct{}

func (Stub) Analyze(_ context.Context, code string) (*models.Review, error) {
	r := []rune(code)
	if len(r) > 80 {
		r = r[:80]
	}
	preview := strings.ReplaceAll(string(r), "\n", " ")
	return &models.Review{
		Summary: "Stub LLM review (no key) | preview: " + preview,
		Issues:  []models.Issue{},
	}, nil
}

// Improve returns code unchanged, whatever issues it is asked to fix.
func (Stub) Improve(_ context.Context, code string, _ []models.Issue, _ []string) (string, error) {
	return code, nil
}

func (Stub) Chat(_ context.Context, message string, _ ChatContext) (string, error) {
	return "Stub LLM answer (no key) | question: " + message, nil
}

// isPlaceholderKey reports whether an API key is missing or obviously fake.
func isPlaceholderKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", "dummy", "test", "placeholder":
		return true
	}
	return false
}
