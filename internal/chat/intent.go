package chat

import (
	"strings"
	"unicode"

	"github.com/garnizeh/devcompanion/pkg/models"
)

// Intent is what a follow-up message asks the reviewer to do.
type Intent int

const (
	IntentExplain Intent = iota
	IntentApply
	IntentDecline
)

func (i Intent) String() string {
	switch i {
	case IntentApply:
		return "apply"
	case IntentDecline:
		return "decline"
	default:
		return "explain"
	}
}

// Decline phrases are checked before apply phrases, so "no, don't fix it"
// declines.
var (
	declinePhrases = []string{
		"no thanks", "not now", "don't", "dont", "do not", "skip",
		"no", "nope", "nah", "decline", "cancel",
	}
	applyPhrases = []string{
		"yes", "yeah", "yep", "sure", "ok", "okay", "fix", "apply",
		"improve", "go ahead", "please do",
	}
	styleTerms = []string{"style", "format", "best practice", "best-practice", "best_practice", "readability", "lint"}

	// A question asks for an explanation even when it mentions "no" or "fix".
	interrogatives = []string{
		"why", "how", "what", "when", "where", "which", "who",
		"is", "are", "does", "should", "explain", "can you explain", "could you explain",
	}
	// Polite requests phrased as questions still ask for the change.
	requestPrefixes = []string{
		"can you fix", "could you fix", "would you fix", "can you apply",
		"could you apply", "can you improve", "could you improve", "please fix",
	}
)

// ClassifyIntent decides between applying fixes, declining them and
// explaining. An explicit apply flag wins over the message text, and
// questions other than direct fix requests are explained.
func ClassifyIntent(message string, apply *bool) Intent {
	if apply != nil {
		if *apply {
			return IntentApply
		}
		return IntentDecline
	}

	w := words(message)
	if hasPrefixPhrase(w, requestPrefixes) {
		return IntentApply
	}
	if strings.HasSuffix(strings.TrimSpace(message), "?") || hasPrefixPhrase(w, interrogatives) {
		return IntentExplain
	}

	text := " " + w + " "
	if containsPhrase(text, declinePhrases) {
		return IntentDecline
	}
	if containsPhrase(text, applyPhrases) {
		return IntentApply
	}
	return IntentExplain
}

// SelectFixTypes narrows a fix request to the issue types it names.
// A nil result means every pending type.
func SelectFixTypes(message string) []string {
	m := strings.ToLower(message)
	security := strings.Contains(m, "security")
	performance := strings.Contains(m, "performance")

	switch {
	case security && !performance:
		return []string{models.IssueSecurity}
	case performance && !security:
		return []string{models.IssuePerformance}
	}
	for _, t := range styleTerms {
		if strings.Contains(m, t) {
			return []string{models.IssueBestPractice, models.IssueStyle}
		}
	}
	return nil
}

// words lowercases s and collapses everything but letters and apostrophes
// into single spaces.
func words(s string) string {
	f := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	return strings.Join(f, " ")
}

func containsPhrase(padded string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// hasPrefixPhrase reports whether the word string w starts with one of phrases.
func hasPrefixPhrase(w string, phrases []string) bool {
	for _, p := range phrases {
		if w == p || strings.HasPrefix(w, p+" ") {
			return true
		}
	}
	return false
}
