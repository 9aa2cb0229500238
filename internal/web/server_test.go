package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/db"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/pipeline"
	"github.com/reachykit/geno/internal/validate"
)

func newTestServer(t *testing.T) (*Server, *db.Store) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "geno.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	store := db.NewStore(database)
	srv, err := NewServer(store)
	require.NoError(t, err)
	return srv, store
}

func seedRun(t *testing.T, store *db.Store, id, request string) {
	t.Helper()
	ctx := context.Background()
	run := &pipeline.Run{
		ID:        id,
		Request:   codegen.Request{Text: request},
		Config:    pipeline.Config{MaxCorrectionAttempts: 3, MaxOptimizationAttempts: 3, ScoreThreshold: 75},
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateRun(ctx, run))

	att := pipeline.Attempt{
		Artifact: codegen.Artifact{Code: "print('wave')", Revision: 1, Provenance: "initial"},
		Report:   &validate.Report{},
		Eval:     &evaluate.Result{Score: 88, Verdict: "good"},
	}
	require.NoError(t, store.RecordAttempt(ctx, id, 1, att))
	require.NoError(t, store.RecordEvent(ctx, id, 1, pipeline.StatusEvent{Stage: pipeline.StageGenerating}))

	run.Status = pipeline.StageAccepted
	run.Reason = pipeline.ReasonAccepted
	run.FinalScore = 88
	run.FinalArtifact = &att.Artifact
	run.EndedAt = time.Now().UTC()
	require.NoError(t, store.FinishRun(ctx, run))
}

func TestIndex_ListsRuns(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	seedRun(t, store, "20260824-130000-aa0001", "wave the right arm")

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "20260824-130000-aa0001")
	assert.Contains(t, body, "wave the right arm")
	assert.Contains(t, body, "accepted")
}

func TestIndex_Empty(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs recorded yet")
}

func TestRunDetail(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	seedRun(t, store, "20260824-130001-aa0002", "nod twice")

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/20260824-130001-aa0002", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "nod twice")
	assert.Contains(t, body, "print(&#39;wave&#39;)")
	assert.Contains(t, body, "88.0")
	assert.Contains(t, body, pipeline.StageGenerating)
}

func TestRunDetail_NotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
