package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/qri-io/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/garnizeh/devcompanion/internal/config"
	"github.com/garnizeh/devcompanion/internal/telemetry"
	"github.com/garnizeh/devcompanion/pkg/models"
	"github.com/garnizeh/devcompanion/pkg/ollama"
)

// Gateway is the code review backend the request orchestrator talks to.
type Gateway interface {
	// Analyze reviews code. When the model output cannot be parsed it
	// returns a degraded review together with a parse_error.
	Analyze(ctx context.Context, code string) (*models.Review, error)
	// Improve rewrites code fixing the given issues, restricted to fixTypes
	// unless fixTypes is empty.
	Improve(ctx context.Context, code string, issues []models.Issue, fixTypes []string) (string, error)
	// Chat answers a follow-up question about a previous review.
	Chat(ctx context.Context, message string, cc ChatContext) (string, error)
}

// Engine implements Gateway on top of a Completer.
type Engine struct {
	completer Completer
	loader    *Loader
	timeout   time.Duration
	logger    *slog.Logger

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewEngine creates a Gateway backed by c. loader may be nil to skip schema checks.
func NewEngine(c Completer, loader *Loader, cfg config.EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	meter := telemetry.Meter("devcompanion/ai")
	dur, _ := meter.Float64Histogram("companion.gateway.duration",
		metric.WithDescription("Time spent in analysis backend calls"),
		metric.WithUnit("s"),
	)
	return &Engine{
		completer: c,
		loader:    loader,
		timeout:   cfg.Timeout,
		logger:    logger,
		tracer:    telemetry.Tracer("devcompanion/ai"),
		duration:  dur,
	}
}

func (e *Engine) Analyze(ctx context.Context, code string) (*models.Review, error) {
	prompt, err := render(reviewTemplate, map[string]any{"Code": code})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	out, err := e.complete(ctx, "analyze", reviewSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	review, err := ParseReview(ctx, out, e.schema())
	if err != nil {
		e.logger.Warn("ai parse error", "kind", Kind(err), "err", err, "raw_len", len(out))
		return review, classify("analyze", err)
	}
	return review, nil
}

func (e *Engine) Improve(ctx context.Context, code string, issues []models.Issue, fixTypes []string) (string, error) {
	prompt, err := render(improveTemplate, map[string]any{
		"Code":   code,
		"Issues": filterIssues(issues, fixTypes),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	out, err := e.complete(ctx, "improve", improveSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	improved := StripCode(out)
	if improved == "" {
		return "", &Error{Kind: KindEmptyResponse, Op: "improve", Err: errEmpty}
	}
	return improved, nil
}

func (e *Engine) Chat(ctx context.Context, message string, cc ChatContext) (string, error) {
	prompt, err := render(chatTemplate, map[string]any{"Message": message, "Context": cc})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	out, err := e.complete(ctx, "chat", chatSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(out)
	if answer == "" {
		return "", &Error{Kind: KindEmptyResponse, Op: "chat", Err: errEmpty}
	}
	return answer, nil
}

// ReloadSchemas recompiles the review schema.
func (e *Engine) ReloadSchemas(ctx context.Context) error {
	if e.loader == nil {
		return nil
	}
	return e.loader.Reload(ctx)
}

// Close releases the backend when it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.completer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Engine) schema() *jsonschema.Schema {
	if e.loader == nil {
		return nil
	}
	return e.loader.Schema()
}

// complete calls the backend under the engine timeout and records a span
// and a latency sample.
func (e *Engine) complete(ctx context.Context, op, system, prompt string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "ai."+op)
	defer span.End()

	ctxReq, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out, err := e.completer.Complete(ctxReq, system, prompt)
	e.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("operation", op)))

	if err == nil && ctxReq.Err() != nil {
		err = ctxReq.Err()
	}
	if err != nil {
		if errors.Is(ctxReq.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		err = classify(op, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, Kind(err))
		e.logger.Warn("ai backend call failed", "op", op, "kind", Kind(err), "err", err)
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		err := &Error{Kind: KindEmptyResponse, Op: op, Err: errEmpty}
		span.SetStatus(codes.Error, KindEmptyResponse)
		return "", err
	}
	span.SetAttributes(attribute.Int("ai.output_len", len(out)))
	return out, nil
}

// New builds the Gateway selected by cfg. Providers that need credentials
// fall back to the Stub when none are configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ec := cfg.EngineConfig

	var c Completer
	switch ec.Provider {
	case config.ProviderStub, "":
		return Stub{}, nil
	case config.ProviderOpenAI:
		if isPlaceholderKey(cfg.OpenAI.APIKey) {
			logger.Warn("no OpenAI key configured, using stub reviewer")
			return Stub{}, nil
		}
		c = NewOpenAICompleter(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, ec.Model, ec.Temperature, nil)
	case config.ProviderOllama:
		client, err := ollama.NewDefaultClient(cfg.Ollama)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		c = NewOllamaCompleter(client, ec.Model, ec.Temperature)
	case config.ProviderBedrock:
		client, err := NewBedrockClient(ctx, cfg.Bedrock.Region)
		if err != nil {
			return nil, err
		}
		model := ec.Model
		if !strings.Contains(model, ".") {
			model = DefaultBedrockModel
		}
		c = NewBedrockCompleter(client, model, cfg.Bedrock.MaxTokens, ec.Temperature)
	default:
		return nil, fmt.Errorf("unknown provider %q", ec.Provider)
	}

	loader, err := NewLoader(ctx, ec.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("create loader: %w", err)
	}
	return NewEngine(c, loader, ec, logger), nil
}
