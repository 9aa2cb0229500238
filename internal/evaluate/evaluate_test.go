package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
	"github.com/reachykit/geno/internal/validate"
)

type fakeCompleter struct {
	response string
	err      error
	calls    []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	return llm.CompletionResponse{OutputText: f.response}, nil
}

func testKB() *knowledge.Base {
	return &knowledge.Base{
		Version: "2.0",
		Modules: []knowledge.Module{
			{Name: "reachy2_sdk.reachy_sdk", Classes: []knowledge.Class{{Name: "ReachySDK"}}},
		},
	}
}

const conformingResponse = `{
	"score": 90,
	"verdict": "Solid code with minor issues.",
	"deductions": [
		{"category": "best-practice", "message": "No comments explaining joint values.", "points": 5},
		{"category": "error-handling", "message": "No except branch for goto failures.", "points": 10}
	]
}`

func TestEvaluate_ComputesScoreFromDeductions(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{response: conformingResponse}
	ev := NewEvaluator(fake, testKB())

	result, err := ev.Evaluate(context.Background(), codegen.Artifact{Code: "print('x')"}, codegen.Request{Text: "wave"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 85.0, result.Score)
	assert.Equal(t, 90.0, result.RawScore)
	assert.Len(t, result.Deductions, 2)
	assert.Equal(t, "Solid code with minor issues.", result.Verdict)
}

func TestEvaluate_RecoversJSONFromProse(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{response: "Here is my evaluation:\n" + conformingResponse + "\nLet me know."}
	ev := NewEvaluator(fake, testKB())

	result, err := ev.Evaluate(context.Background(), codegen.Artifact{Code: "print('x')"}, codegen.Request{Text: "wave"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 85.0, result.Score)
}

func TestEvaluate_MalformedResponse(t *testing.T) {
	t.Parallel()

	for name, response := range map[string]string{
		"prose":            "The code looks fine to me.",
		"wrong shape":      `{"valid": true, "errors": []}`,
		"unknown category": `{"score": 50, "verdict": "v", "deductions": [{"category": "styling", "message": "m", "points": 5}]}`,
	} {
		fake := &fakeCompleter{response: response}
		ev := NewEvaluator(fake, testKB())
		_, err := ev.Evaluate(context.Background(), codegen.Artifact{Code: "x"}, codegen.Request{Text: "wave"}, nil)
		assert.ErrorIs(t, err, ErrMalformedEvaluation, "case %s", name)
	}
}

func TestEvaluate_TransportErrorIsNotMalformed(t *testing.T) {
	t.Parallel()

	transport := errors.New("gateway timeout")
	fake := &fakeCompleter{err: transport}
	ev := NewEvaluator(fake, testKB())

	_, err := ev.Evaluate(context.Background(), codegen.Artifact{Code: "x"}, codegen.Request{Text: "wave"}, nil)
	assert.ErrorIs(t, err, transport)
	assert.NotErrorIs(t, err, ErrMalformedEvaluation)
}

func TestEvaluate_ForwardsWarningsAndRequest(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{response: conformingResponse}
	ev := NewEvaluator(fake, testKB())

	warnings := []validate.Finding{
		{Kind: validate.KindStyleWarning, Severity: validate.SeverityWarning, Message: "no finally block found for ensuring cleanup"},
	}
	_, err := ev.Evaluate(context.Background(), codegen.Artifact{Code: "print('x')"}, codegen.Request{Text: "wave the arm"}, warnings)
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Input, "ORIGINAL USER REQUEST:\nwave the arm")
	assert.Contains(t, fake.calls[0].Input, "no finally block")
	assert.Contains(t, fake.calls[0].Instructions, "deductions")
}

func TestScoreFromDeductions_CategoryCapsAndClamp(t *testing.T) {
	t.Parallel()

	// Safety is capped at 35 even when itemized deductions exceed it.
	score := scoreFromDeductions([]Deduction{
		{Category: "safety", Points: 30},
		{Category: "safety", Points: 30},
	})
	assert.Equal(t, 65.0, score)

	// Every category maxed out sums to 100, clamping the score to 0.
	score = scoreFromDeductions([]Deduction{
		{Category: "api-correctness", Points: 99},
		{Category: "safety", Points: 99},
		{Category: "error-handling", Points: 99},
		{Category: "best-practice", Points: 99},
		{Category: "edge-case-handling", Points: 99},
	})
	assert.Equal(t, 0.0, score)

	score = scoreFromDeductions(nil)
	assert.Equal(t, 100.0, score)
}
