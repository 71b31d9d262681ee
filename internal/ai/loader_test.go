package ai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Default(t *testing.T) {
	l, err := NewLoader(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, l.Schema())
}

func TestLoader_CustomPathAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "review.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object","required":["summary"]}`), 0o600))

	l, err := NewLoader(context.Background(), path)
	require.NoError(t, err)

	_, err = ParseReview(context.Background(), `{"issues":[]}`, l.Schema())
	assert.Equal(t, KindParseError, Kind(err))

	first := l.Schema()
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	assert.Error(t, l.Reload(context.Background()))
	assert.Same(t, first, l.Schema())

	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object"}`), 0o600))
	require.NoError(t, l.Reload(context.Background()))
	assert.NotSame(t, first, l.Schema())
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
