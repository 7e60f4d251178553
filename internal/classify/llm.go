package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

const classifySystemPrompt = `You are a query classifier for a web research assistant.
Decide whether the user's input is a valid information-seeking question that can be
answered by searching the web.

INVALID inputs include: personal task lists or reminders ("walk the dog, buy milk"),
commands addressed to a device, gibberish, and requests for actions rather than
information.

Respond with exactly two lines:
CLASSIFICATION: VALID or INVALID
REASON: <one short sentence>`

// ChatCompleter is the slice of the chat client the classifier needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMClassifier asks a chat model whether a query is an information request.
type LLMClassifier struct {
	client ChatCompleter
	logger *zap.Logger
}

// NewLLMClassifier creates a model-backed classifier.
func NewLLMClassifier(client ChatCompleter, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{client: client, logger: logger}
}

// Classify sends the query to the model and parses its verdict.
func (c *LLMClassifier) Classify(ctx context.Context, query models.Query) (models.Classification, error) {
	reply, err := c.client.Complete(ctx, classifySystemPrompt, query.Raw)
	if err != nil {
		return models.Classification{}, fmt.Errorf("classification request: %w", err)
	}

	verdict, reason, err := parseVerdict(reply)
	if err != nil {
		return models.Classification{}, err
	}

	c.logger.Debug("query classified",
		zap.String("query", query.Canonical),
		zap.Bool("accepted", verdict),
		zap.String("reason", reason))

	return models.Classification{Accepted: verdict, Reason: reason}, nil
}

// parseVerdict extracts the CLASSIFICATION and REASON lines from a model
// reply. Unknown verdicts are an error so the caller can fall back.
func parseVerdict(reply string) (bool, string, error) {
	var verdict, reason string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(strings.ToUpper(line), "CLASSIFICATION:"):
			verdict = strings.ToUpper(strings.TrimSpace(line[len("CLASSIFICATION:"):]))
		case strings.HasPrefix(strings.ToUpper(line), "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}

	switch {
	case strings.HasPrefix(verdict, "VALID"):
		return true, reason, nil
	case strings.HasPrefix(verdict, "INVALID"):
		if reason == "" {
			reason = "not an information request"
		}
		return false, reason, nil
	default:
		return false, "", fmt.Errorf("unparseable classification reply: %q", reply)
	}
}
