package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/review.json
var defaultReviewSchema []byte

// Loader compiles and caches the JSON schema model reviews are checked against.
type Loader struct {
	path   string
	mu     sync.RWMutex
	schema *jsonschema.Schema
}

// NewLoader loads the schema at path, or the built-in one when path is empty.
func NewLoader(ctx context.Context, path string) (*Loader, error) {
	l := &Loader{path: path}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

// Schema returns the compiled review schema.
func (l *Loader) Schema() *jsonschema.Schema {
	l.mu.RLock()
	s := l.schema
	l.mu.RUnlock()

	return s
}

// Reload reads and compiles the schema again. On failure the previous
// schema stays in use.
func (l *Loader) Reload(_ context.Context) error {
	raw := defaultReviewSchema
	if l.path != "" {
		b, err := os.ReadFile(l.path)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		raw = b
	}

	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, rs); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	l.mu.Lock()
	l.schema = rs
	l.mu.Unlock()
	return nil
}
