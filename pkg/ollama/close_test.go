package ollama

import (
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/garnizeh/devcompanion/internal/config"
)

type testTransport struct{ called int32 }

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) { panic("not used") }
func (t *testTransport) CloseIdleConnections()                               { atomic.AddInt32(&t.called, 1) }

func TestClient_Close_IdempotentAndCallsTransport(t *testing.T) {
	tr := &testTransport{}
	client := &http.Client{Transport: tr}
	cfg := config.OllamaConfig{BaseURL: "http://localhost:11434", Timeout: 1}
	c, err := NewClient(cfg, client)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close second call error: %v", err)
	}
	if n := atomic.LoadInt32(&tr.called); n != 1 {
		t.Fatalf("expected CloseIdleConnections called once, got %d", n)
	}
}

func TestClient_Close_NilSafe(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(config.OllamaConfig{BaseURL: "not a url"}, nil); err == nil {
		t.Fatalf("expected error for invalid base url")
	}
}

func TestCircuitDisabledWithoutThreshold(t *testing.T) {
	c := &Client{cfg: config.OllamaConfig{}}
	for i := 0; i < 10; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit must stay closed when no threshold is configured")
	}
}

func TestNewClient_FillsDefaults(t *testing.T) {
	c, err := NewClient(config.OllamaConfig{}, &http.Client{Transport: &testTransport{}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	def := DefaultConfig()
	if c.cfg.BaseURL != def.BaseURL {
		t.Fatalf("base url = %q, want %q", c.cfg.BaseURL, def.BaseURL)
	}
	if c.cfg.Timeout != def.Timeout {
		t.Fatalf("timeout = %v, want %v", c.cfg.Timeout, def.Timeout)
	}
}
