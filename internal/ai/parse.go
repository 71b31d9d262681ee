package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/devcompanion/pkg/models"
)

type rawIssue struct {
	Type        *string `json:"type"`
	Description *string `json:"description"`
	Suggestion  *string `json:"suggestion"`
}

type rawReview struct {
	Summary *string    `json:"summary"`
	Issues  []rawIssue `json:"issues"`
}

// ParseReview turns model output into a Review. Output that is not a valid
// review JSON object yields a degraded Review carrying the raw text as its
// summary, together with a parse_error. schema may be nil.
func ParseReview(ctx context.Context, text string, schema *jsonschema.Schema) (*models.Review, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &Error{Kind: KindEmptyResponse, Op: "parse", Err: errEmpty}
	}
	degraded := &models.Review{Summary: trimmed, Issues: []models.Issue{}}

	j := extractJSON(stripFences(trimmed))
	if j == "" {
		return degraded, &Error{Kind: KindParseError, Op: "parse", Err: errNoJSON}
	}

	if schema != nil {
		verrs, err := schema.ValidateBytes(ctx, []byte(j))
		if err != nil {
			return degraded, &Error{Kind: KindParseError, Op: "parse", Err: err}
		}
		if len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, v := range verrs {
				msgs = append(msgs, v.PropertyPath+": "+v.Message)
			}
			return degraded, &Error{
				Kind: KindParseError,
				Op:   "parse",
				Err:  fmt.Errorf("response does not match schema: %s", strings.Join(msgs, "; ")),
			}
		}
	}

	var r rawReview
	if err := json.Unmarshal([]byte(j), &r); err != nil {
		return degraded, &Error{Kind: KindParseError, Op: "parse", Err: fmt.Errorf("json unmarshal: %w", err)}
	}

	review := &models.Review{Summary: trimmed, Issues: make([]models.Issue, 0, len(r.Issues))}
	if r.Summary != nil && strings.TrimSpace(*r.Summary) != "" {
		review.Summary = *r.Summary
	}
	for _, ri := range r.Issues {
		review.Issues = append(review.Issues, models.Issue{
			Type:        normalizeType(deref(ri.Type)),
			Description: deref(ri.Description),
			Suggestion:  deref(ri.Suggestion),
		})
	}
	return review, nil
}

// StripCode removes a markdown fence wrapped around generated code.
func StripCode(text string) string {
	return strings.TrimSpace(stripFences(strings.TrimSpace(text)))
}

// stripFences drops a leading ```lang line and a trailing ``` when present.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimRight(s, " \t\r\n")
	return strings.TrimSuffix(s, "```")
}

// extractJSON returns the substring from the first '{' to the last '}' in the input.
func extractJSON(s string) string {
	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first == -1 || last == -1 || last < first {
		return ""
	}
	return s[first : last+1]
}

// normalizeType maps loose category names onto the canonical issue types.
func normalizeType(t string) string {
	u := strings.ToUpper(strings.TrimSpace(t))
	u = strings.NewReplacer(" ", "_", "-", "_").Replace(u)
	switch u {
	case "BEST_PRACTICES", "BESTPRACTICE":
		return models.IssueBestPractice
	case "SECURITY_ISSUE", "SEC":
		return models.IssueSecurity
	case "PERF":
		return models.IssuePerformance
	case "":
		return t
	}
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
