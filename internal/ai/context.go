package ai

import (
	"github.com/garnizeh/devcompanion/internal/conversation"
	"github.com/garnizeh/devcompanion/pkg/models"
)

// DefaultHistoryWindow is how many recent messages a follow-up question sees.
const DefaultHistoryWindow = 10

// Turn is one prior message offered to the model as context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext is what a follow-up question is answered against.
type ChatContext struct {
	OriginalCode string         `json:"original_code"`
	CurrentCode  string         `json:"current_code,omitempty"`
	Issues       []models.Issue `json:"detected_issues"`
	History      []Turn         `json:"history"`
}

// BuildChatContext projects a conversation onto the last window messages
// and its analysis state. A window of zero or less uses DefaultHistoryWindow.
func BuildChatContext(c conversation.Context, window int) ChatContext {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	msgs := c.Messages
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}

	history := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, Turn{Role: string(m.Role), Content: m.Content})
	}

	cc := ChatContext{
		OriginalCode: c.State.OriginalCode,
		Issues:       c.State.DetectedIssues,
		History:      history,
	}
	if c.State.CurrentCode != c.State.OriginalCode {
		cc.CurrentCode = c.State.CurrentCode
	}
	return cc
}
