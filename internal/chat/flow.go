package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/garnizeh/devcompanion/internal/ai"
	"github.com/garnizeh/devcompanion/internal/apperr"
	"github.com/garnizeh/devcompanion/internal/conversation"
	"github.com/garnizeh/devcompanion/pkg/models"
)

// Transition names recorded in metrics and logs.
const (
	transitionNew     = "new_analysis"
	transitionRestart = "restart"
	transitionApply   = "apply"
	transitionDecline = "decline"
	transitionExplain = "explain"
)

const declineAck = "Understood, I won't change the code. Ask me about any of the issues if you want more detail."

// analysisActions is offered whenever a review found issues.
var analysisActions = []string{
	"Apply all suggested fixes",
	"Fix only security issues",
	"Fix only performance issues",
	"Explain an issue",
	"No thanks",
}

// Chat runs one turn of the conversational review.
func (s *Service) Chat(ctx context.Context, client string, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := s.checkRate(ctx, client); err != nil {
		return nil, err
	}

	code := req.Code()
	id := req.ConversationID
	if id == "" {
		if code == "" {
			return nil, apperr.InvalidInput(msgCodeRequired)
		}
		return s.review(ctx, s.conversations.Create(), code, transitionNew)
	}

	if !s.conversations.Exists(id) {
		return nil, apperr.ConversationNotFound(id)
	}
	if code != "" {
		s.conversations.ResetState(id)
		return s.review(ctx, id, code, transitionRestart)
	}

	if req.Message == nil {
		return nil, apperr.InvalidInput("Provide 'message' or new 'source_code' to continue the conversation.")
	}
	msg := strings.TrimSpace(*req.Message)
	if msg == "" {
		return nil, apperr.InvalidInput("message cannot be empty")
	}

	s.conversations.AddMessage(id, conversation.RoleUser, msg, nil)
	switch ClassifyIntent(msg, req.ApplyImprovements) {
	case IntentApply:
		return s.apply(ctx, id, msg)
	case IntentDecline:
		return s.decline(ctx, id)
	default:
		return s.explain(ctx, id, msg)
	}
}

// review analyzes code and makes it the subject of conversation id.
func (s *Service) review(ctx context.Context, id, code, transition string) (*models.ChatResponse, error) {
	s.conversations.AddMessage(id, conversation.RoleUser, "Please review this code.", map[string]any{"code": code})

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	review, err := s.gateway.Analyze(actx, code)
	cancel()
	if err != nil {
		switch {
		case review != nil:
			s.logger.Warn("review degraded to raw text", "conversation_id", id, "kind", ai.Kind(err))
		case ai.Kind(err) != ai.KindTimeout:
			return s.degraded(ctx, id, code, transition, err), nil
		case transition == transitionNew:
			// The caller never learned this ID.
			s.conversations.Delete(id)
			s.logger.Warn("new analysis timed out, conversation dropped", "conversation_id", id)
			s.metrics.Transition(ctx, transition+"_failed")
			return nil, gatewayError(err)
		default:
			return nil, s.fail(ctx, id, transition, err)
		}
	}

	issues := review.Issues
	if issues == nil {
		issues = []models.Issue{}
	}
	types := models.IssueTypes(issues)
	awaiting := len(issues) > 0

	s.conversations.AddMessage(id, conversation.RoleAssistant, review.Summary, map[string]any{
		"issue_count": len(issues),
		"issue_types": types,
	})
	s.conversations.UpdateState(id, conversation.StateUpdate{
		OriginalCode:     &code,
		CurrentCode:      &code,
		DetectedIssues:   issues,
		PendingIssues:    types,
		AppliedFixes:     []string{},
		AwaitingDecision: &awaiting,
	})
	s.metrics.Transition(ctx, transition)

	resp := &models.ChatResponse{
		ConversationID:    id,
		Summary:           review.Summary,
		Issues:            issues,
		AwaitingUserInput: awaiting,
	}
	if awaiting {
		resp.SuggestedActions = slices.Clone(analysisActions)
	}
	return resp, nil
}

// degraded records a failed analysis as a review with no issues so the
// conversation stays usable.
func (s *Service) degraded(ctx context.Context, id, code, transition string, err error) *models.ChatResponse {
	kind := ai.Kind(err)
	s.logger.Error("analysis failed, answering with a degraded review",
		"conversation_id", id, "transition", transition, "kind", kind, "err", err)

	summary := analysisErrorSummary(err)
	awaiting := false
	s.conversations.AddMessage(id, conversation.RoleAssistant, summary, map[string]any{
		"error":       kind,
		"issue_count": 0,
	})
	s.conversations.UpdateState(id, conversation.StateUpdate{
		OriginalCode:     &code,
		CurrentCode:      &code,
		DetectedIssues:   []models.Issue{},
		PendingIssues:    []string{},
		AppliedFixes:     []string{},
		AwaitingDecision: &awaiting,
	})
	s.metrics.Transition(ctx, transition+"_degraded")

	return &models.ChatResponse{
		ConversationID: id,
		Summary:        summary,
		Issues:         []models.Issue{},
	}
}

func (s *Service) apply(ctx context.Context, id, msg string) (*models.ChatResponse, error) {
	c, ok := s.conversations.Get(id)
	if !ok {
		return nil, apperr.ConversationNotFound(id)
	}
	st := c.State
	if st.OriginalCode == "" {
		return nil, apperr.InvalidInput("No code has been reviewed in this conversation yet.")
	}

	fixTypes := SelectFixTypes(msg)

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	improved, err := s.gateway.Improve(actx, st.OriginalCode, st.DetectedIssues, fixTypes)
	cancel()
	if err != nil {
		return nil, s.fail(ctx, id, transitionApply, err)
	}

	applied := fixTypes
	if applied == nil {
		applied = models.IssueTypes(st.DetectedIssues)
	}
	pending := []string{}
	if fixTypes != nil {
		for _, t := range models.IssueTypes(st.DetectedIssues) {
			if !slices.Contains(applied, t) {
				pending = append(pending, t)
			}
		}
	}
	awaiting := len(pending) > 0

	summary := "I applied fixes for all detected issues."
	if fixTypes != nil {
		summary = fmt.Sprintf("I applied fixes for the %s issues.", strings.Join(applied, ", "))
	}
	if awaiting {
		summary += fmt.Sprintf(" Still open: %s. Want me to fix those too?", strings.Join(pending, ", "))
	}

	s.conversations.AddMessage(id, conversation.RoleAssistant, summary, map[string]any{
		"improved_code": improved,
		"applied_fixes": applied,
	})
	s.conversations.UpdateState(id, conversation.StateUpdate{
		CurrentCode:      &improved,
		AppliedFixes:     applied,
		PendingIssues:    pending,
		AwaitingDecision: &awaiting,
	})
	s.metrics.Transition(ctx, transitionApply)

	resp := &models.ChatResponse{
		ConversationID:    id,
		Summary:           summary,
		Issues:            st.DetectedIssues,
		ImprovedCode:      &improved,
		AwaitingUserInput: awaiting,
	}
	if awaiting {
		for _, t := range pending {
			resp.SuggestedActions = append(resp.SuggestedActions, "Fix "+strings.ToLower(t)+" issues")
		}
		resp.SuggestedActions = append(resp.SuggestedActions, "No thanks")
	}
	return resp, nil
}

func (s *Service) decline(ctx context.Context, id string) (*models.ChatResponse, error) {
	c, ok := s.conversations.Get(id)
	if !ok {
		return nil, apperr.ConversationNotFound(id)
	}

	awaiting := false
	s.conversations.AddMessage(id, conversation.RoleAssistant, declineAck, nil)
	s.conversations.UpdateState(id, conversation.StateUpdate{AwaitingDecision: &awaiting})
	s.metrics.Transition(ctx, transitionDecline)

	return &models.ChatResponse{
		ConversationID: id,
		Summary:        declineAck,
		Issues:         issuesOrEmpty(c.State.DetectedIssues),
	}, nil
}

func (s *Service) explain(ctx context.Context, id, msg string) (*models.ChatResponse, error) {
	cctx, ok := s.conversations.Context(id)
	if !ok {
		return nil, apperr.ConversationNotFound(id)
	}

	actx, cancel := context.WithTimeout(ctx, s.timeout)
	answer, err := s.gateway.Chat(actx, msg, ai.BuildChatContext(cctx, s.historyWindow))
	cancel()
	if err != nil {
		return nil, s.fail(ctx, id, transitionExplain, err)
	}

	s.conversations.AddMessage(id, conversation.RoleAssistant, answer, nil)
	s.metrics.Transition(ctx, transitionExplain)

	return &models.ChatResponse{
		ConversationID: id,
		Summary:        answer,
		Issues:         issuesOrEmpty(cctx.State.DetectedIssues),
	}, nil
}

// fail records a gateway failure in the conversation and maps it for the caller.
func (s *Service) fail(ctx context.Context, id, transition string, err error) error {
	kind := ai.Kind(err)
	s.logger.Error("gateway call failed", "conversation_id", id, "transition", transition, "kind", kind, "err", err)
	s.conversations.AddMessage(id, conversation.RoleAssistant,
		"Sorry, I could not complete that request.", map[string]any{"error": kind})
	s.metrics.Transition(ctx, transition+"_failed")
	e := gatewayError(err)
	e.Details = map[string]any{"conversation_id": id}
	return e
}

func issuesOrEmpty(issues []models.Issue) []models.Issue {
	if issues == nil {
		return []models.Issue{}
	}
	return issues
}
