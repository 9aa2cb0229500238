package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/pipeline"
	"github.com/reachykit/geno/internal/validate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "geno.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func newTestRun(id, request string) *pipeline.Run {
	return &pipeline.Run{
		ID:      id,
		Request: codegen.Request{Text: request},
		Config: pipeline.Config{
			MaxCorrectionAttempts:   3,
			MaxOptimizationAttempts: 3,
			ScoreThreshold:          75,
		},
		StartedAt: time.Now().UTC(),
	}
}

func TestStore_RunRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("20260824-120000-abc123", "wave the right arm")
	require.NoError(t, store.CreateRun(ctx, run))

	require.NoError(t, store.RecordEvent(ctx, run.ID, 1, pipeline.StatusEvent{Stage: pipeline.StageGenerating}))
	require.NoError(t, store.RecordEvent(ctx, run.ID, 2, pipeline.StatusEvent{Stage: pipeline.StageValidating, Revision: 1}))

	report := validate.Report{}
	eval := evaluate.Result{Score: 85, RawScore: 90, Verdict: "solid",
		Deductions: []evaluate.Deduction{{Category: "safety", Message: "no sleep after motion", Points: 10}}}
	att := pipeline.Attempt{
		Artifact: codegen.Artifact{Code: "print('hi')", Revision: 1, Provenance: "initial"},
		Report:   &report,
		Eval:     &eval,
	}
	require.NoError(t, store.RecordAttempt(ctx, run.ID, 1, att))

	run.Status = pipeline.StageAccepted
	run.Reason = pipeline.ReasonAccepted
	run.FinalScore = 85
	run.FinalArtifact = &att.Artifact
	run.EndedAt = run.StartedAt.Add(3 * time.Second)
	require.NoError(t, store.FinishRun(ctx, run))

	detail, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "wave the right arm", detail.Request)
	assert.Equal(t, pipeline.StageAccepted, detail.Status)
	assert.Equal(t, pipeline.ReasonAccepted, detail.Reason)
	assert.Equal(t, 85.0, detail.Score)
	assert.Equal(t, 75.0, detail.Threshold)
	assert.Equal(t, 1, detail.FinalRevision)
	assert.Equal(t, "print('hi')", detail.FinalCode)
	assert.False(t, detail.EvaluationUnavailable)

	require.Len(t, detail.Attempts, 1)
	got := detail.Attempts[0]
	assert.Equal(t, "initial", got.Provenance)
	require.NotNil(t, got.Report)
	assert.True(t, got.Report.Passing())
	require.NotNil(t, got.Eval)
	assert.Equal(t, 85.0, got.Eval.Score)
	require.Len(t, got.Eval.Deductions, 1)
	assert.Equal(t, "safety", got.Eval.Deductions[0].Category)

	require.Len(t, detail.Events, 2)
	assert.Equal(t, pipeline.StageGenerating, detail.Events[0].Stage)
	assert.Equal(t, pipeline.StageValidating, detail.Events[1].Stage)
}

func TestStore_RecordAttemptUpsert(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("20260824-120001-abc124", "nod")
	require.NoError(t, store.CreateRun(ctx, run))

	att := pipeline.Attempt{
		Artifact: codegen.Artifact{Code: "pass", Revision: 1, Provenance: "initial"},
		Report:   &validate.Report{},
	}
	require.NoError(t, store.RecordAttempt(ctx, run.ID, 1, att))

	att.Eval = &evaluate.Result{Score: 92, Verdict: "good"}
	require.NoError(t, store.RecordAttempt(ctx, run.ID, 1, att))

	detail, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attempts, 1)
	require.NotNil(t, detail.Attempts[0].Eval)
	assert.Equal(t, 92.0, detail.Attempts[0].Eval.Score)
}

func TestStore_FailedRunKeepsFindings(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	run := newTestRun("20260824-120002-abc125", "unsafe thing")
	require.NoError(t, store.CreateRun(ctx, run))

	report := validate.Report{Findings: []validate.Finding{{
		Kind:     validate.KindSafetyViolation,
		Severity: validate.SeverityFatal,
		Message:  "os.system is not allowed",
		Line:     4,
	}}}
	att := pipeline.Attempt{
		Artifact: codegen.Artifact{Code: "import os", Revision: 1, Provenance: "initial"},
		Report:   &report,
	}
	require.NoError(t, store.RecordAttempt(ctx, run.ID, 1, att))

	run.Status = pipeline.StageFailed
	run.Reason = pipeline.ReasonCorrectionExhausted
	run.FinalArtifact = &att.Artifact
	run.EndedAt = time.Now().UTC()
	require.NoError(t, store.FinishRun(ctx, run))

	detail, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attempts, 1)
	require.NotNil(t, detail.Attempts[0].Report)
	fatal := detail.Attempts[0].Report.Fatal()
	require.Len(t, fatal, 1)
	assert.Equal(t, "os.system is not allowed", fatal[0].Message)
	assert.Equal(t, 4, fatal[0].Line)
	assert.Nil(t, detail.Attempts[0].Eval)
}

func TestStore_GetRunNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	older := newTestRun("20260824-120003-abc126", "first")
	older.StartedAt = time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	newer := newTestRun("20260824-120004-abc127", "second")
	newer.StartedAt = time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateRun(ctx, older))
	require.NoError(t, store.CreateRun(ctx, newer))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.Equal(t, "running", runs[0].Status)
}

func TestStore_PruneRuns(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	ctx := context.Background()

	for i, start := range []time.Time{
		time.Now().UTC().Add(-72 * time.Hour),
		time.Now().UTC().Add(-48 * time.Hour),
		time.Now().UTC(),
	} {
		run := newTestRun(string(rune('a'+i))+"-run", "request")
		run.StartedAt = start
		require.NoError(t, store.CreateRun(ctx, run))
	}

	deleted, err := store.PruneRuns(ctx, 24*time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
