package models

// Issue types produced by the reviewer.
const (
	IssueSecurity     = "SECURITY"
	IssuePerformance  = "PERFORMANCE"
	IssueBestPractice = "BEST_PRACTICE"
	IssueStyle        = "STYLE"
)

// Issue is one finding of a code review. Empty fields are absent.
type Issue struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

func (i Issue) ToMap() map[string]any {
	m := make(map[string]any, 3)
	if i.Type != "" {
		m["type"] = i.Type
	}
	if i.Description != "" {
		m["description"] = i.Description
	}
	if i.Suggestion != "" {
		m["suggestion"] = i.Suggestion
	}
	return m
}

// Review is the structured result of analyzing a piece of code.
type Review struct {
	Summary string  `json:"summary"`
	Issues  []Issue `json:"issues"`
}

func (r *Review) ToMap() map[string]any {
	issues := make([]map[string]any, 0, len(r.Issues))
	for _, i := range r.Issues {
		issues = append(issues, i.ToMap())
	}
	return map[string]any{"summary": r.Summary, "issues": issues}
}

// IssueTypes returns the distinct issue types in order of first appearance.
func IssueTypes(issues []Issue) []string {
	seen := make(map[string]bool, len(issues))
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.Type == "" || seen[i.Type] {
			continue
		}
		seen[i.Type] = true
		out = append(out, i.Type)
	}
	return out
}

// ChatRequest drives the conversational review flow.
type ChatRequest struct {
	SourceCode        string  `json:"source_code,omitempty" validate:"max=200000"`
	CodeSnippet       string  `json:"code_snippet,omitempty" validate:"max=200000"`
	ConversationID    string  `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
	Message           *string `json:"message,omitempty" validate:"omitempty,max=10000"`
	ApplyImprovements *bool   `json:"apply_improvements,omitempty"`
}

// Code returns source_code, falling back to the legacy code_snippet field.
func (r ChatRequest) Code() string {
	if r.SourceCode != "" {
		return r.SourceCode
	}
	return r.CodeSnippet
}

// CodeRequest carries code for the stateless and asynchronous endpoints.
type CodeRequest struct {
	SourceCode  string `json:"source_code,omitempty" validate:"max=200000"`
	CodeSnippet string `json:"code_snippet,omitempty" validate:"max=200000"`
}

func (r CodeRequest) Code() string {
	if r.SourceCode != "" {
		return r.SourceCode
	}
	return r.CodeSnippet
}

// ChatResponse is returned by every chat transition.
type ChatResponse struct {
	ConversationID    string   `json:"conversation_id"`
	Summary           string   `json:"summary"`
	Issues            []Issue  `json:"issues"`
	ImprovedCode      *string  `json:"improved_code"`
	AwaitingUserInput bool     `json:"awaiting_user_input"`
	SuggestedActions  []string `json:"suggested_actions,omitempty"`
}

type SubmitResponse struct {
	JobID string `json:"job_id"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
