// Package codegen turns natural-language robot requests into python
// code artifacts using a completion model.
package codegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
	"github.com/reachykit/geno/internal/prompt"
)

// Artifact provenance values.
const (
	ProvenanceInitial      = "initial"
	ProvenanceCorrection   = "correction"
	ProvenanceOptimization = "optimization"
)

// Request is one natural-language code generation request.
type Request struct {
	Text    string
	History []Turn
}

// Turn is one prior conversation exchange carried as context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Artifact is one generated code revision.
type Artifact struct {
	Code       string
	Revision   int
	Provenance string
}

// How many classes the knowledge summary keeps when trimming for a
// request.
const summaryClassLimit = 12

// Generator produces code artifacts from requests.
type Generator struct {
	completer llm.Completer
	kb        *knowledge.Base
}

// NewGenerator constructs a Generator over a model and a knowledge base.
func NewGenerator(completer llm.Completer, kb *knowledge.Base) *Generator {
	return &Generator{completer: completer, kb: kb}
}

// Generate produces the initial code artifact for a request. When the
// response carries no extractable code block, the model is asked once
// more to return only code; a second miss fails with ErrNoCodeBlock.
func (g *Generator) Generate(ctx context.Context, req Request) (Artifact, error) {
	instructions, err := g.instructions(req)
	if err != nil {
		return Artifact{}, err
	}

	code, err := CompleteCode(ctx, g.completer, instructions, renderInput(req))
	if err != nil {
		return Artifact{}, fmt.Errorf("generate code: %w", err)
	}

	return Artifact{Code: code, Revision: 1, Provenance: ProvenanceInitial}, nil
}

// CompleteCode runs one completion and extracts the code block from the
// response. When no block is extractable, the model is asked once more
// to return only code; a second miss fails with ErrNoCodeBlock.
func CompleteCode(ctx context.Context, completer llm.Completer, instructions, input string) (string, error) {
	resp, err := completer.Complete(ctx, llm.CompletionRequest{
		Instructions: instructions,
		Input:        input,
	})
	if err != nil {
		return "", err
	}

	code, err := ExtractCodeBlock(resp.OutputText)
	if err != nil {
		log.Debug().Msg("no code block in response, retrying with code-only instruction")
		resp, err = completer.Complete(ctx, llm.CompletionRequest{
			Instructions: instructions,
			Input: input + "\n\nYour previous response did not contain a code block. " +
				"Return ONLY the complete Python code inside a single ```python code block.",
		})
		if err != nil {
			return "", fmt.Errorf("retry: %w", err)
		}
		code, err = ExtractCodeBlock(resp.OutputText)
		if err != nil {
			return "", err
		}
	}
	return code, nil
}

func (g *Generator) instructions(req Request) (string, error) {
	overrides := map[string]string{
		prompt.KeyAPISummary: "API DOCUMENTATION:\n" + g.kb.FilterForRequest(req.Text, summaryClassLimit),
	}
	instructions, err := prompt.Assemble(prompt.GeneratorOrder(), overrides)
	if err != nil {
		return "", fmt.Errorf("assemble generator prompt: %w", err)
	}
	return instructions, nil
}

func renderInput(req Request) string {
	if len(req.History) == 0 {
		return req.Text
	}
	var sb strings.Builder
	sb.WriteString("CONVERSATION SO FAR:\n")
	for _, turn := range req.History {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	sb.WriteString("\nCURRENT REQUEST:\n")
	sb.WriteString(req.Text)
	return sb.String()
}
