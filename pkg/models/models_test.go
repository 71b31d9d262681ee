package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garnizeh/devcompanion/pkg/models"
)

func TestIssueTypesDistinctInOrder(t *testing.T) {
	issues := []models.Issue{
		{Type: models.IssuePerformance},
		{Type: models.IssueSecurity},
		{Type: ""},
		{Type: models.IssuePerformance},
	}
	assert.Equal(t, []string{"PERFORMANCE", "SECURITY"}, models.IssueTypes(issues))
	assert.Empty(t, models.IssueTypes(nil))
}

func TestReviewToMapOmitsAbsentFields(t *testing.T) {
	r := &models.Review{
		Summary: "one problem",
		Issues:  []models.Issue{{Type: "STYLE", Description: "long line"}},
	}
	m := r.ToMap()
	assert.Equal(t, "one problem", m["summary"])
	issues := m["issues"].([]map[string]any)
	assert.Len(t, issues, 1)
	assert.Equal(t, "long line", issues[0]["description"])
	_, has := issues[0]["suggestion"]
	assert.False(t, has)
}

func TestRequestCodePrefersSourceCode(t *testing.T) {
	assert.Equal(t, "a", models.ChatRequest{SourceCode: "a", CodeSnippet: "b"}.Code())
	assert.Equal(t, "b", models.ChatRequest{CodeSnippet: "b"}.Code())
	assert.Equal(t, "b", models.CodeRequest{CodeSnippet: "b"}.Code())
}
