package models

import "time"

// Outcome discriminates the three terminal states of a pipeline run.
type Outcome string

const (
	// OutcomeRejected means the query was not a searchable information request.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAnswered means an answer was produced, cached or fresh.
	OutcomeAnswered Outcome = "answered"
	// OutcomeFailed means a pipeline stage failed for this run.
	OutcomeFailed Outcome = "failed"
)

// Stage names the pipeline stage where a run failed.
type Stage string

const (
	StageRetrieval Stage = "retrieval"
	StageSynthesis Stage = "synthesis"
	StageInternal  Stage = "internal"
)

// PipelineResult is the single value returned across the pipeline boundary.
// Exactly one outcome is populated: Rejected carries Reason, Answered carries
// Record/CacheHit, Failed carries Stage and Reason.
type PipelineResult struct {
	Outcome  Outcome       `json:"outcome"`
	Query    string        `json:"query"`
	Reason   string        `json:"reason,omitempty"`
	Stage    Stage         `json:"stage,omitempty"`
	Record   *AnswerRecord `json:"record,omitempty"`
	CacheHit bool          `json:"cache_hit,omitempty"`
	Elapsed  time.Duration `json:"-"`
	// ElapsedMS mirrors Elapsed for JSON consumers.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Rejected builds a rejection result.
func Rejected(query Query, reason string, elapsed time.Duration) PipelineResult {
	return PipelineResult{
		Outcome:   OutcomeRejected,
		Query:     query.Canonical,
		Reason:    reason,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// Answered builds a successful result.
func Answered(query Query, record *AnswerRecord, cacheHit bool, elapsed time.Duration) PipelineResult {
	return PipelineResult{
		Outcome:   OutcomeAnswered,
		Query:     query.Canonical,
		Record:    record,
		CacheHit:  cacheHit,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

// Failed builds a failure result for the given stage.
func Failed(query Query, stage Stage, reason string, elapsed time.Duration) PipelineResult {
	return PipelineResult{
		Outcome:   OutcomeFailed,
		Query:     query.Canonical,
		Stage:     stage,
		Reason:    reason,
		Elapsed:   elapsed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}
