package ai

import (
	"bytes"
	"text/template"

	"github.com/garnizeh/devcompanion/pkg/models"
)

const reviewSystemPrompt = "You are an expert code review assistant. Given source code, output ONLY a JSON " +
	"object with keys 'summary' and 'issues'. 'issues' is a list of objects with 'type', " +
	"'description', and 'suggestion'. 'type' is one of SECURITY, PERFORMANCE, BEST_PRACTICE, STYLE. " +
	"If there are no issues, return an empty list."

const improveSystemPrompt = "You are an expert software engineer. Rewrite the code so the listed issues are fixed. " +
	"Keep behavior and structure otherwise unchanged, never leave credentials or secrets in the code, " +
	"and return ONLY the complete updated code without explanations."

const chatSystemPrompt = "You are a friendly code review assistant answering follow-up questions about a review " +
	"you already performed. Answer concisely in plain text."

var (
	reviewTemplate = template.Must(template.New("review").Parse(
		"Review the following code:\n```\n{{.Code}}\n```\n"))

	improveTemplate = template.Must(template.New("improve").
		Funcs(template.FuncMap{"add": func(a, b int) int { return a + b }}).
		Parse("Code:\n```\n{{.Code}}\n```\n\nFix these issues:\n" +
			"{{range $i, $is := .Issues}}{{add $i 1}}. [{{$is.Type}}] {{$is.Description}}" +
			"{{if $is.Suggestion}} (suggestion: {{$is.Suggestion}}){{end}}\n{{end}}"))

	chatTemplate = template.Must(template.New("chat").Parse(
		"Code under review:\n```\n{{.Context.OriginalCode}}\n```\n" +
			"{{if .Context.CurrentCode}}\nCurrent revision:\n```\n{{.Context.CurrentCode}}\n```\n{{end}}" +
			"{{if .Context.Issues}}\nIssues found:\n{{range .Context.Issues}}- [{{.Type}}] {{.Description}}\n{{end}}{{end}}" +
			"{{if .Context.History}}\nConversation so far:\n{{range .Context.History}}{{.Role}}: {{.Content}}\n{{end}}{{end}}" +
			"\nQuestion: {{.Message}}\n"))
)

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// filterIssues keeps the issues whose type is in fixTypes; nil keeps all.
func filterIssues(issues []models.Issue, fixTypes []string) []models.Issue {
	if len(fixTypes) == 0 {
		return issues
	}
	want := make(map[string]bool, len(fixTypes))
	for _, t := range fixTypes {
		want[t] = true
	}
	out := make([]models.Issue, 0, len(issues))
	for _, i := range issues {
		if want[i.Type] {
			out = append(out, i)
		}
	}
	return out
}
