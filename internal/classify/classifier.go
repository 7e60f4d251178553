// Package classify decides whether a query is an answerable information
// request or something else (a task list, a command, noise).
package classify

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Classifier judges whether a query should enter the pipeline.
type Classifier interface {
	// Classify returns the accept/reject decision with a short reason.
	// An error means the classifier itself failed; the caller decides
	// whether to degrade or abort.
	Classify(ctx context.Context, query models.Query) (models.Classification, error)
}
