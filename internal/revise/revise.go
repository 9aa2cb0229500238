// Package revise produces corrected and optimized revisions of
// generated robot code from validator and evaluator feedback.
package revise

import (
	"context"
	"fmt"
	"strings"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
	"github.com/reachykit/geno/internal/prompt"
	"github.com/reachykit/geno/internal/validate"
)

// Reviser turns feedback into new code revisions using the generator
// model.
type Reviser struct {
	completer llm.Completer
	kb        *knowledge.Base
}

// NewReviser constructs a Reviser over a model and a knowledge base.
func NewReviser(completer llm.Completer, kb *knowledge.Base) *Reviser {
	return &Reviser{completer: completer, kb: kb}
}

// Correct produces a revision that fixes the fatal validation findings.
// The original request text is always included so fixes do not drift
// from the user's intent.
func (r *Reviser) Correct(ctx context.Context, artifact codegen.Artifact, report validate.Report, req codegen.Request, attempt int) (codegen.Artifact, error) {
	var feedback strings.Builder
	feedback.WriteString("The code failed validation with the following errors:\n")
	for _, f := range report.Fatal() {
		if f.Line > 0 {
			fmt.Fprintf(&feedback, "- line %d: %s\n", f.Line, f.Message)
		} else {
			fmt.Fprintf(&feedback, "- %s\n", f.Message)
		}
	}
	feedback.WriteString("\nFix ALL of these errors. Keep the behavior the user asked for.")

	code, err := r.revision(ctx, artifact, req, feedback.String())
	if err != nil {
		return codegen.Artifact{}, fmt.Errorf("correct code: %w", err)
	}
	return codegen.Artifact{
		Code:       code,
		Revision:   artifact.Revision + 1,
		Provenance: fmt.Sprintf("%s-%d", codegen.ProvenanceCorrection, attempt),
	}, nil
}

// Revise produces a revision that addresses the evaluator's itemized
// critiques.
func (r *Reviser) Revise(ctx context.Context, artifact codegen.Artifact, eval evaluate.Result, req codegen.Request, attempt int) (codegen.Artifact, error) {
	var feedback strings.Builder
	fmt.Fprintf(&feedback, "The code scored %.1f/100. %s\n", eval.Score, eval.Verdict)
	feedback.WriteString("Address the following critiques:\n")
	for _, d := range eval.Deductions {
		fmt.Fprintf(&feedback, "- [%s, -%.0f] %s\n", d.Category, d.Points, d.Message)
	}
	feedback.WriteString("\nImprove the code without changing what the user asked for.")

	code, err := r.revision(ctx, artifact, req, feedback.String())
	if err != nil {
		return codegen.Artifact{}, fmt.Errorf("revise code: %w", err)
	}
	return codegen.Artifact{
		Code:       code,
		Revision:   artifact.Revision + 1,
		Provenance: fmt.Sprintf("%s-%d", codegen.ProvenanceOptimization, attempt),
	}, nil
}

func (r *Reviser) revision(ctx context.Context, artifact codegen.Artifact, req codegen.Request, feedback string) (string, error) {
	instructions, err := prompt.Assemble(prompt.GeneratorOrder(), map[string]string{
		prompt.KeyAPISummary: "API DOCUMENTATION:\n" + r.kb.FilterForRequest(req.Text, 12),
	})
	if err != nil {
		return "", fmt.Errorf("assemble revision prompt: %w", err)
	}

	var input strings.Builder
	input.WriteString("ORIGINAL USER REQUEST:\n")
	input.WriteString(req.Text)
	input.WriteString("\n\nCURRENT CODE:\n```python\n")
	input.WriteString(artifact.Code)
	input.WriteString("\n```\n\n")
	input.WriteString(feedback)
	input.WriteString("\n\nReturn the complete revised Python code in a single ```python code block.")

	return codegen.CompleteCode(ctx, r.completer, instructions, input.String())
}
