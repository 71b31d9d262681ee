// Package chat is the request orchestrator: it applies rate limiting and
// admission control, drives the conversational review state machine and
// runs asynchronous analysis jobs.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/garnizeh/devcompanion/internal/ai"
	"github.com/garnizeh/devcompanion/internal/apperr"
	"github.com/garnizeh/devcompanion/internal/conversation"
	"github.com/garnizeh/devcompanion/internal/jobs"
	"github.com/garnizeh/devcompanion/internal/ratelimit"
	"github.com/garnizeh/devcompanion/internal/telemetry"
	"github.com/garnizeh/devcompanion/pkg/models"
)

const msgCodeRequired = "Provide 'source_code' or 'code_snippet'."

// Config holds the orchestrator limits.
type Config struct {
	MaxConcurrentJobs int
	AnalysisTimeout   time.Duration
	HistoryWindow     int
}

// Deps are the collaborators the orchestrator composes. Metrics may be nil.
type Deps struct {
	Limiter       *ratelimit.Limiter
	Jobs          *jobs.Manager
	Pool          *jobs.Pool
	Conversations *conversation.Manager
	Gateway       ai.Gateway
	Metrics       *telemetry.Metrics
}

type Service struct {
	limiter       *ratelimit.Limiter
	jobs          *jobs.Manager
	pool          *jobs.Pool
	conversations *conversation.Manager
	gateway       ai.Gateway
	metrics       *telemetry.Metrics
	logger        *slog.Logger

	maxJobs       int
	timeout       time.Duration
	historyWindow int
}

func NewService(d Deps, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 100
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 25 * time.Second
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = ai.DefaultHistoryWindow
	}
	return &Service{
		limiter:       d.Limiter,
		jobs:          d.Jobs,
		pool:          d.Pool,
		conversations: d.Conversations,
		gateway:       d.Gateway,
		metrics:       d.Metrics,
		logger:        logger,
		maxJobs:       cfg.MaxConcurrentJobs,
		timeout:       cfg.AnalysisTimeout,
		historyWindow: cfg.HistoryWindow,
	}
}

// checkRate consults the limiter for client.
func (s *Service) checkRate(ctx context.Context, client string) error {
	if s.limiter == nil {
		return nil
	}
	if retry, limited := s.limiter.Check(client); limited {
		s.metrics.Rejected(ctx, "rate_limit")
		s.logger.Info("rate limited", "client", client, "retry_after", retry)
		return apperr.RateLimitExceeded(retry)
	}
	return nil
}

// SubmitJob schedules a background analysis of code and returns the job ID.
func (s *Service) SubmitJob(ctx context.Context, client, code string) (string, error) {
	if err := s.checkRate(ctx, client); err != nil {
		return "", err
	}
	if active := s.jobs.ActiveCount(); active >= s.maxJobs {
		s.metrics.Rejected(ctx, "capacity")
		s.logger.Warn("job capacity reached", "active_jobs", active, "max_concurrent", s.maxJobs)
		return "", apperr.ServerBusy(active, s.maxJobs)
	}
	if code == "" {
		return "", apperr.InvalidInput(msgCodeRequired)
	}

	id := s.jobs.Create()
	s.pool.Go(id, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		review, err := s.gateway.Analyze(ctx, code)
		if err != nil || review == nil {
			return nil, err
		}
		return review, nil
	})
	s.metrics.JobSubmitted(ctx)
	s.logger.Info("job submitted", "job_id", id)
	return id, nil
}

// JobStatus returns the job record.
func (s *Service) JobStatus(id string) (jobs.Job, error) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return jobs.Job{}, apperr.JobNotFound(id)
	}
	return j, nil
}

// JobResult returns the job and whether its result is ready. A job that
// ended in error is reported as a job_failed error carrying the stored message.
func (s *Service) JobResult(id string) (jobs.Job, bool, error) {
	j, ok := s.jobs.Get(id)
	if !ok {
		return jobs.Job{}, false, apperr.JobNotFound(id)
	}
	switch j.Status {
	case jobs.StatusDone:
		return j, true, nil
	case jobs.StatusError:
		e := apperr.JobFailed(id, j.Error)
		e.Details["error_kind"] = j.ErrorKind
		return j, false, e
	default:
		return j, false, nil
	}
}

// CleanupJobs drops jobs older than ttl and returns how many were removed.
func (s *Service) CleanupJobs(ttl time.Duration) int {
	n := s.jobs.Cleanup(ttl)
	s.logger.Info("jobs cleaned up", "removed", n, "ttl", ttl)
	return n
}

// Analyze reviews code without a conversation. Gateway failures never fail
// the request; they degrade into a summary naming the error.
func (s *Service) Analyze(ctx context.Context, client, code string) (*models.Review, error) {
	if err := s.checkRate(ctx, client); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.InvalidInput(msgCodeRequired)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	review, err := s.gateway.Analyze(ctx, code)
	if err == nil {
		return review, nil
	}
	s.logger.Warn("stateless analysis degraded", "kind", ai.Kind(err), "err", err)
	if review != nil {
		return review, nil
	}
	return &models.Review{
		Summary: analysisErrorSummary(err),
		Issues:  []models.Issue{},
	}, nil
}

// analysisErrorSummary is the summary reported in place of a failed review.
func analysisErrorSummary(err error) string {
	return fmt.Sprintf("analysis_error (%s): %v", ai.Kind(err), err)
}

// ListConversations returns conversation summaries, newest activity first.
func (s *Service) ListConversations() []conversation.Summary {
	return s.conversations.List()
}

func (s *Service) GetConversation(id string) (conversation.Conversation, error) {
	c, ok := s.conversations.Get(id)
	if !ok {
		return conversation.Conversation{}, apperr.ConversationNotFound(id)
	}
	return c, nil
}

func (s *Service) DeleteConversation(id string) error {
	if !s.conversations.Delete(id) {
		return apperr.ConversationNotFound(id)
	}
	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// ClearConversations removes every conversation and returns how many there were.
func (s *Service) ClearConversations() int {
	n := s.conversations.ClearAll()
	s.logger.Info("conversations cleared", "count", n)
	return n
}

// ResetRateLimits forgets every client's request window.
func (s *Service) ResetRateLimits() {
	if s.limiter != nil {
		s.limiter.Reset()
	}
}

// gatewayError maps a gateway failure onto the caller-facing taxonomy.
func gatewayError(err error) *apperr.Error {
	if ai.Kind(err) == ai.KindTimeout {
		return apperr.AnalysisTimeout(err)
	}
	return apperr.CodeAnalysis(err)
}

// Stats is a point-in-time view of the in-memory stores.
type Stats struct {
	ActiveJobs    int `json:"active_jobs"`
	Jobs          int `json:"jobs"`
	Conversations int `json:"conversations"`
	MaxJobs       int `json:"max_concurrent_jobs"`
	RateLimit     int `json:"rate_limit_per_minute"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		ActiveJobs:    s.jobs.ActiveCount(),
		Jobs:          s.jobs.Len(),
		Conversations: len(s.conversations.List()),
		MaxJobs:       s.maxJobs,
	}
	if s.limiter != nil {
		st.RateLimit = s.limiter.Limit()
	}
	return st
}
