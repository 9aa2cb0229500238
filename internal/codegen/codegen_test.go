package codegen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
)

type fakeCompleter struct {
	responses []string
	err       error
	calls     []llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return llm.CompletionResponse{OutputText: f.responses[idx]}, nil
}

func testKB() *knowledge.Base {
	return &knowledge.Base{
		Version: "2.0",
		Modules: []knowledge.Module{
			{Name: "reachy2_sdk.reachy_sdk", Classes: []knowledge.Class{{Name: "ReachySDK"}}},
		},
	}
}

func TestExtractCodeBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"python fence", "Here you go:\n```python\nprint('hi')\n```\nEnjoy.", "print('hi')"},
		{"bare fence", "```\nprint('hi')\n```", "print('hi')"},
		{"unterminated fence", "```python\nprint('hi')", "print('hi')"},
		{"py fence", "```py\nprint('hi')\n```", "print('hi')"},
		{"fence with info string", "```python title=demo\nprint('hi')\n```", "print('hi')"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractCodeBlock(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractCodeBlock_NoBlock(t *testing.T) {
	t.Parallel()

	_, err := ExtractCodeBlock("I cannot generate code for that request.")
	assert.ErrorIs(t, err, ErrNoCodeBlock)
}

func TestGenerate_ReturnsInitialArtifact(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{responses: []string{"Sure:\n```python\nprint('wave')\n```"}}
	gen := NewGenerator(fake, testKB())

	artifact, err := gen.Generate(context.Background(), Request{Text: "wave the arm"})
	require.NoError(t, err)
	assert.Equal(t, "print('wave')", artifact.Code)
	assert.Equal(t, 1, artifact.Revision)
	assert.Equal(t, ProvenanceInitial, artifact.Provenance)

	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Instructions, "API DOCUMENTATION:")
	assert.Contains(t, fake.calls[0].Instructions, "CRITICAL WARNINGS:")
	assert.Equal(t, "wave the arm", fake.calls[0].Input)
}

func TestGenerate_RetriesOnceWhenNoCodeBlock(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{responses: []string{
		"I will describe the approach instead.",
		"```python\nprint('wave')\n```",
	}}
	gen := NewGenerator(fake, testKB())

	artifact, err := gen.Generate(context.Background(), Request{Text: "wave"})
	require.NoError(t, err)
	assert.Equal(t, "print('wave')", artifact.Code)
	require.Len(t, fake.calls, 2)
	assert.Contains(t, fake.calls[1].Input, "ONLY the complete Python code")
}

func TestGenerate_FailsAfterSecondMiss(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{responses: []string{"no code", "still no code"}}
	gen := NewGenerator(fake, testKB())

	_, err := gen.Generate(context.Background(), Request{Text: "wave"})
	assert.ErrorIs(t, err, ErrNoCodeBlock)
	assert.Len(t, fake.calls, 2)
}

func TestGenerate_PropagatesTransportError(t *testing.T) {
	t.Parallel()

	transport := errors.New("connection refused")
	fake := &fakeCompleter{err: transport}
	gen := NewGenerator(fake, testKB())

	_, err := gen.Generate(context.Background(), Request{Text: "wave"})
	assert.ErrorIs(t, err, transport)
}

func TestGenerate_IncludesHistoryInInput(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{responses: []string{"```python\nprint('hi')\n```"}}
	gen := NewGenerator(fake, testKB())

	_, err := gen.Generate(context.Background(), Request{
		Text: "now wave the other arm",
		History: []Turn{
			{Role: "user", Content: "wave the right arm"},
			{Role: "assistant", Content: "done"},
		},
	})
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Contains(t, fake.calls[0].Input, "CONVERSATION SO FAR:")
	assert.Contains(t, fake.calls[0].Input, "wave the right arm")
	assert.Contains(t, fake.calls[0].Input, "CURRENT REQUEST:")
}
