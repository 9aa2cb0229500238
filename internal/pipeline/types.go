package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/sandbox"
	"github.com/reachykit/geno/internal/validate"
)

// Pipeline stages. The first five are transient; the rest are terminal.
const (
	StageGenerating = "generating"
	StageValidating = "validating"
	StageCorrecting = "correcting"
	StageEvaluating = "evaluating"
	StageOptimizing = "optimizing"

	StageAccepted  = "accepted"
	StageExhausted = "exhausted"
	StageFailed    = "failed"
	StageCancelled = "cancelled"
)

// Termination reasons.
const (
	ReasonAccepted              = "accepted"
	ReasonCorrectionExhausted   = "correction-limit-exhausted"
	ReasonOptimizationExhausted = "optimization-limit-exhausted"
	ReasonEvaluationUnavailable = "evaluation-unavailable"
	ReasonGenerationFailed      = "generation-failed"
	ReasonModelCallFailed       = "model-call-failed"
	ReasonCancelled             = "cancelled"
)

// Config bounds one pipeline run. It is threaded explicitly so
// concurrent runs with different budgets or thresholds never share
// ambient state.
type Config struct {
	MaxCorrectionAttempts   int
	MaxOptimizationAttempts int
	ScoreThreshold          float64
}

// StatusEvent is emitted on every stage transition.
type StatusEvent struct {
	Stage    string `json:"stage"`
	Attempt  int    `json:"attempt"`
	Revision int    `json:"revision"`
}

// Observer receives status events as the run progresses.
type Observer func(StatusEvent)

// Attempt pairs one code artifact with the reports it earned.
type Attempt struct {
	Artifact codegen.Artifact
	Report   *validate.Report
	Eval     *evaluate.Result
}

// Run is the full record of one pipeline execution. It is mutated only
// by the controller while the run is in flight and is immutable history
// afterwards.
type Run struct {
	ID      string
	Request codegen.Request
	Config  Config

	Attempts              []Attempt
	CorrectionAttempts    int
	OptimizationAttempts  int
	Status                string
	Reason                string
	FinalArtifact         *codegen.Artifact
	FinalScore            float64
	EvaluationUnavailable bool
	Err                   string

	Execution *sandbox.ExecutionResult

	StartedAt time.Time
	EndedAt   time.Time
}

// Accepted reports whether the run ended at the accepted stage.
func (r *Run) Accepted() bool {
	return r.Status == StageAccepted
}

// Usable reports whether the run produced an artifact worth executing:
// accepted, or exhausted with a validated best-effort artifact.
func (r *Run) Usable() bool {
	return r.FinalArtifact != nil && (r.Status == StageAccepted || r.Status == StageExhausted)
}

// LastAttempt returns the most recent attempt, or nil before the first
// validation.
func (r *Run) LastAttempt() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

func newRunID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// Timestamp alone still identifies the run.
		return time.Now().UTC().Format("20060102-150405")
	}
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102-150405"), hex.EncodeToString(buf))
}
