// Package cli provides CLI output helpers for Kotae.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
)

// OutputFormat is the format for result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteResult writes a pipeline result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteResult(w io.Writer, result *models.PipelineResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		writeResultText(w, result)
		return nil
	}
}

func writeResultText(w io.Writer, result *models.PipelineResult) {
	switch result.Outcome {
	case models.OutcomeRejected:
		fmt.Fprintf(w, "\nQuery rejected: %s\n", result.Reason)
	case models.OutcomeFailed:
		fmt.Fprintf(w, "\nResolution failed at %s: %s\n", result.Stage, result.Reason)
	case models.OutcomeAnswered:
		origin := "fresh"
		if result.CacheHit {
			origin = "cached"
		}
		fmt.Fprintf(w, "\n%s\n", result.Record.AnswerText)
		if len(result.Record.Sources) > 0 {
			fmt.Fprintln(w, "\nSources:")
			for i, src := range result.Record.Sources {
				fmt.Fprintf(w, "  [%d] %s\n      %s\n", i+1, src.Title, src.URL)
			}
		}
		fmt.Fprintf(w, "\n(%s, %dms)\n", origin, result.ElapsedMS)
	}
}

// WriteStatus writes a pipeline status snapshot to w in the given format.
func WriteStatus(w io.Writer, st pipeline.Status, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Cache reachable:      %s\n", yesNo(st.CacheReachable))
	fmt.Fprintf(w, "Classifier reachable: %s\n", yesNo(st.ClassifierReachable))
	fmt.Fprintf(w, "Retriever reachable:  %s\n", yesNo(st.RetrieverReachable))
	fmt.Fprintf(w, "Index reachable:      %s\n", yesNo(st.IndexReachable))
	fmt.Fprintf(w, "Cached answers:       %d\n", st.CachedAnswers)
	fmt.Fprintf(w, "Indexed queries:      %d\n", st.IndexedQueries)
	fmt.Fprintf(w, "Similarity threshold: %.2f\n", st.SimilarityThreshold)
	fmt.Fprintf(w, "Max sources:          %d\n", st.MaxSources)
	fmt.Fprintf(w, "Answer TTL:           %.0fh\n", st.TTLHours)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
