package classify

import (
	"context"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Imperative verbs that usually open a task rather than a question.
var taskVerbs = map[string]bool{
	"add":      true,
	"buy":      true,
	"call":     true,
	"clean":    true,
	"email":    true,
	"feed":     true,
	"finish":   true,
	"order":    true,
	"pay":      true,
	"pick":     true,
	"remind":   true,
	"schedule": true,
	"send":     true,
	"walk":     true,
	"wash":     true,
}

var questionWords = map[string]bool{
	"what":    true,
	"who":     true,
	"when":    true,
	"where":   true,
	"why":     true,
	"how":     true,
	"which":   true,
	"is":      true,
	"are":     true,
	"can":     true,
	"does":    true,
	"do":      true,
	"did":     true,
	"will":    true,
	"should":  true,
	"explain": true,
	"define":  true,
	"compare": true,
}

// RuleClassifier is a deterministic classifier used when no chat model is
// configured. It accepts anything that looks like a question and rejects
// comma-joined imperative task lists.
type RuleClassifier struct{}

// NewRuleClassifier creates a heuristic classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify applies the heuristics to the canonical query.
func (c *RuleClassifier) Classify(_ context.Context, query models.Query) (models.Classification, error) {
	text := query.Canonical

	if strings.HasSuffix(text, "?") {
		return models.Classification{Accepted: true, Reason: "question form"}, nil
	}

	words := strings.Fields(text)
	if len(words) > 0 && questionWords[words[0]] {
		return models.Classification{Accepted: true, Reason: "interrogative opening"}, nil
	}

	// A list of short clauses each opening with an imperative verb is a
	// task list, not a question.
	clauses := strings.Split(text, ",")
	if len(clauses) > 1 {
		imperative := 0
		for _, clause := range clauses {
			w := strings.Fields(strings.TrimSpace(clause))
			if len(w) > 0 && taskVerbs[w[0]] {
				imperative++
			}
		}
		if imperative == len(clauses) {
			return models.Classification{Accepted: false, Reason: "looks like a task list, not an information request"}, nil
		}
	}

	if len(words) == 1 && taskVerbs[words[0]] {
		return models.Classification{Accepted: false, Reason: "bare command"}, nil
	}

	// Anything else is assumed to be a topic lookup.
	return models.Classification{Accepted: true, Reason: "topic lookup"}, nil
}
