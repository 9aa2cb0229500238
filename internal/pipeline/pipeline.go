// Package pipeline orchestrates the generation, validation, evaluation,
// and optimization loop that turns a request into accepted robot code.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/validate"
)

// Generator produces the initial code artifact.
type Generator interface {
	Generate(ctx context.Context, req codegen.Request) (codegen.Artifact, error)
}

// Validator statically checks one artifact.
type Validator interface {
	Validate(code string) validate.Report
}

// Evaluator scores one validated artifact.
type Evaluator interface {
	Evaluate(ctx context.Context, artifact codegen.Artifact, req codegen.Request, warnings []validate.Finding) (evaluate.Result, error)
}

// Reviser produces corrected and optimized revisions.
type Reviser interface {
	Correct(ctx context.Context, artifact codegen.Artifact, report validate.Report, req codegen.Request, attempt int) (codegen.Artifact, error)
	Revise(ctx context.Context, artifact codegen.Artifact, eval evaluate.Result, req codegen.Request, attempt int) (codegen.Artifact, error)
}

// Recorder persists run progress. Implemented by db.Store.
type Recorder interface {
	CreateRun(ctx context.Context, run *Run) error
	RecordEvent(ctx context.Context, runID string, seq int, ev StatusEvent) error
	RecordAttempt(ctx context.Context, runID string, seq int, att Attempt) error
	FinishRun(ctx context.Context, run *Run) error
}

// Deps are the controller's collaborators. Observer and Recorder are
// optional.
type Deps struct {
	Generator Generator
	Validator Validator
	Evaluator Evaluator
	Reviser   Reviser
	Observer  Observer
	Recorder  Recorder
}

// Controller drives one pipeline run at a time through the loop as a
// sequential state machine. Concurrent runs each use their own Run
// record; the controller itself holds no per-run state.
type Controller struct {
	cfg  Config
	deps Deps
}

// NewController constructs a Controller with explicit budgets.
func NewController(cfg Config, deps Deps) *Controller {
	return &Controller{cfg: cfg, deps: deps}
}

// Run executes the full loop for one request. It always returns a
// well-formed Run with an explicit terminal status; component errors
// are translated into termination reasons, never propagated.
func (c *Controller) Run(ctx context.Context, req codegen.Request) *Run {
	run := &Run{
		ID:        newRunID(),
		Request:   req,
		Config:    c.cfg,
		StartedAt: time.Now().UTC(),
	}
	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.CreateRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to persist run start")
		}
	}
	defer func() {
		run.EndedAt = time.Now().UTC()
		if c.deps.Recorder != nil {
			if err := c.deps.Recorder.FinishRun(ctx, run); err != nil {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to persist run result")
			}
		}
		log.Info().
			Str("run_id", run.ID).
			Str("status", run.Status).
			Str("reason", run.Reason).
			Float64("score", run.FinalScore).
			Int("corrections", run.CorrectionAttempts).
			Int("optimizations", run.OptimizationAttempts).
			Dur("duration", run.EndedAt.Sub(run.StartedAt)).
			Msg("run finished")
	}()

	eventSeq := 0
	emit := func(stage string, attempt, revision int) {
		eventSeq++
		ev := StatusEvent{Stage: stage, Attempt: attempt, Revision: revision}
		log.Info().
			Str("run_id", run.ID).
			Str("stage", stage).
			Int("attempt", attempt).
			Int("revision", revision).
			Msg("stage transition")
		if c.deps.Observer != nil {
			c.deps.Observer(ev)
		}
		if c.deps.Recorder != nil {
			if err := c.deps.Recorder.RecordEvent(ctx, run.ID, eventSeq, ev); err != nil {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to persist event")
			}
		}
	}

	recorded := 0
	commitAttempts := func() {
		for ; recorded < len(run.Attempts); recorded++ {
			if c.deps.Recorder == nil {
				continue
			}
			if err := c.deps.Recorder.RecordAttempt(ctx, run.ID, recorded+1, run.Attempts[recorded]); err != nil {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to persist attempt")
			}
		}
	}
	terminate := func(stage, reason string, final *codegen.Artifact) {
		run.Status = stage
		run.Reason = reason
		run.FinalArtifact = final
		commitAttempts()
		emit(stage, 0, revisionOf(final))
	}
	fail := func(err error) {
		run.Err = err.Error()
		stage, reason := classifyError(err)
		if reason == ReasonModelCallFailed && len(run.Attempts) == 0 {
			reason = ReasonGenerationFailed
		}
		terminate(stage, reason, run.lastPassingArtifact())
	}

	emit(StageGenerating, 0, 0)
	artifact, err := c.deps.Generator.Generate(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("generation failed")
		fail(err)
		return run
	}

	consecutiveFatal := 0
	for {
		// Validation loop. Optimized revisions re-enter here: an
		// optimization pass can reintroduce a syntax error.
		var report validate.Report
		for {
			emit(StageValidating, consecutiveFatal, artifact.Revision)
			report = c.deps.Validator.Validate(artifact.Code)
			rep := report
			run.Attempts = append(run.Attempts, Attempt{Artifact: artifact, Report: &rep})

			if report.Passing() {
				consecutiveFatal = 0
				break
			}
			consecutiveFatal++
			commitAttempts()
			// The budget bounds consecutive fatal reports on one
			// artifact line and total corrections across the run.
			if consecutiveFatal >= c.cfg.MaxCorrectionAttempts || run.CorrectionAttempts >= c.cfg.MaxCorrectionAttempts {
				log.Warn().
					Str("run_id", run.ID).
					Int("fatal_reports", consecutiveFatal).
					Msg("correction budget exhausted")
				art := artifact
				terminate(StageFailed, ReasonCorrectionExhausted, &art)
				return run
			}

			emit(StageCorrecting, consecutiveFatal, artifact.Revision)
			revised, err := c.deps.Reviser.Correct(ctx, artifact, report, req, consecutiveFatal)
			if err != nil {
				log.Error().Err(err).Str("run_id", run.ID).Msg("correction failed")
				fail(err)
				return run
			}
			run.CorrectionAttempts++
			artifact = revised
		}

		// Evaluation, with one re-evaluation of the same artifact when
		// the response does not conform.
		var result evaluate.Result
		retried := false
		for {
			emit(StageEvaluating, run.OptimizationAttempts, artifact.Revision)
			res, err := c.deps.Evaluator.Evaluate(ctx, artifact, req, report.Warnings())
			if err == nil {
				result = res
				break
			}
			if errors.Is(err, evaluate.ErrMalformedEvaluation) {
				log.Warn().Err(err).Str("run_id", run.ID).Msg("evaluation response malformed")
				if !retried {
					retried = true
					continue
				}
				run.EvaluationUnavailable = true
				art := artifact
				terminate(StageExhausted, ReasonEvaluationUnavailable, &art)
				return run
			}
			log.Error().Err(err).Str("run_id", run.ID).Msg("evaluation failed")
			fail(err)
			return run
		}

		run.LastAttempt().Eval = &result
		run.FinalScore = result.Score
		commitAttempts()

		if result.Score >= c.cfg.ScoreThreshold {
			art := artifact
			terminate(StageAccepted, ReasonAccepted, &art)
			return run
		}
		if run.OptimizationAttempts >= c.cfg.MaxOptimizationAttempts {
			art := artifact
			terminate(StageExhausted, ReasonOptimizationExhausted, &art)
			return run
		}

		emit(StageOptimizing, run.OptimizationAttempts+1, artifact.Revision)
		revised, err := c.deps.Reviser.Revise(ctx, artifact, result, req, run.OptimizationAttempts+1)
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID).Msg("optimization failed")
			fail(err)
			return run
		}
		run.OptimizationAttempts++
		artifact = revised
	}
}

// classifyError maps a component error to a terminal stage: parent
// cancellation ends the run as cancelled, everything else (timeouts
// included) as failed.
func classifyError(err error) (stage, reason string) {
	if errors.Is(err, context.Canceled) {
		return StageCancelled, ReasonCancelled
	}
	return StageFailed, ReasonModelCallFailed
}

// lastPassingArtifact returns the most recent artifact whose validation
// passed, if any.
func (r *Run) lastPassingArtifact() *codegen.Artifact {
	for i := len(r.Attempts) - 1; i >= 0; i-- {
		att := r.Attempts[i]
		if att.Report != nil && att.Report.Passing() {
			art := att.Artifact
			return &art
		}
	}
	return nil
}

func revisionOf(artifact *codegen.Artifact) int {
	if artifact == nil {
		return 0
	}
	return artifact.Revision
}
