// Package evaluate scores generated robot code with an evaluator model
// and a deterministic deduction table.
package evaluate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
	"github.com/reachykit/geno/internal/prompt"
	"github.com/reachykit/geno/internal/validate"
)

// ErrMalformedEvaluation indicates the evaluator model returned output
// that could not be decoded as a conforming evaluation. It is
// recoverable: the caller may re-evaluate the same artifact.
var ErrMalformedEvaluation = errors.New("malformed evaluation response")

// Deduction categories and the maximum points one category may remove.
var categoryCaps = map[string]float64{
	"api-correctness":    30,
	"safety":             35,
	"error-handling":     15,
	"best-practice":      10,
	"edge-case-handling": 10,
}

//go:embed response_schema.json
var responseSchemaJSON string

// Deduction is one itemized critique with a point cost.
type Deduction struct {
	Category string  `json:"category"`
	Message  string  `json:"message"`
	Points   float64 `json:"points"`
}

// Result is the outcome of evaluating one code artifact. Score is
// computed from the deductions; the model's own score is advisory and
// kept as RawScore.
type Result struct {
	Score      float64     `json:"score"`
	RawScore   float64     `json:"raw_score"`
	Verdict    string      `json:"verdict"`
	Deductions []Deduction `json:"deductions"`
}

// Evaluator scores code artifacts against the rubric.
type Evaluator struct {
	completer llm.Completer
	kb        *knowledge.Base
}

// NewEvaluator constructs an Evaluator over a model and a knowledge base.
func NewEvaluator(completer llm.Completer, kb *knowledge.Base) *Evaluator {
	return &Evaluator{completer: completer, kb: kb}
}

// Evaluate scores one artifact in the context of the original request.
// Validator warnings are forwarded so the model weighs them in its
// critique. Transport failures return the raw error; non-conforming
// model output returns ErrMalformedEvaluation.
func (e *Evaluator) Evaluate(ctx context.Context, artifact codegen.Artifact, req codegen.Request, warnings []validate.Finding) (Result, error) {
	instructions, err := prompt.Assemble(prompt.EvaluatorOrder(), map[string]string{
		prompt.KeyAPISummary: "API DOCUMENTATION:\n" + e.kb.FilterForRequest(req.Text, 12),
	})
	if err != nil {
		return Result{}, fmt.Errorf("assemble evaluator prompt: %w", err)
	}

	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Instructions: instructions,
		Input:        renderInput(artifact, req, warnings),
	})
	if err != nil {
		return Result{}, fmt.Errorf("evaluate code: %w", err)
	}

	result, err := decodeResult(resp.OutputText)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func renderInput(artifact codegen.Artifact, req codegen.Request, warnings []validate.Finding) string {
	var sb strings.Builder
	sb.WriteString("ORIGINAL USER REQUEST:\n")
	sb.WriteString(req.Text)
	sb.WriteString("\n\nCODE TO EVALUATE:\n```python\n")
	sb.WriteString(artifact.Code)
	sb.WriteString("\n```\n")
	if len(warnings) > 0 {
		sb.WriteString("\nSTATIC ANALYSIS WARNINGS:\n")
		for _, w := range warnings {
			fmt.Fprintf(&sb, "- %s\n", w.Message)
		}
	}
	sb.WriteString("\nEvaluate this code based on the criteria specified.")
	return sb.String()
}

// decodeResult recovers the JSON payload from the model output,
// validates it against the response schema, and computes the final
// score from the deductions.
func decodeResult(output string) (Result, error) {
	payload := []byte(output)
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		recovered, ok := extractJSON(payload)
		if !ok || json.Unmarshal(recovered, &raw) != nil {
			return Result{}, fmt.Errorf("%w: output is not valid JSON", ErrMalformedEvaluation)
		}
		payload = recovered
	}

	schemaResult, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(responseSchemaJSON),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvaluation, err)
	}
	if !schemaResult.Valid() {
		msgs := make([]string, 0, len(schemaResult.Errors()))
		for _, schemaErr := range schemaResult.Errors() {
			msgs = append(msgs, schemaErr.String())
		}
		return Result{}, fmt.Errorf("%w: %s", ErrMalformedEvaluation, strings.Join(msgs, "; "))
	}

	var decoded struct {
		Score      float64     `json:"score"`
		Verdict    string      `json:"verdict"`
		Deductions []Deduction `json:"deductions"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvaluation, err)
	}

	result := Result{
		RawScore:   decoded.Score,
		Verdict:    decoded.Verdict,
		Deductions: decoded.Deductions,
	}
	result.Score = scoreFromDeductions(decoded.Deductions)
	if result.Score != decoded.Score {
		log.Debug().
			Float64("computed", result.Score).
			Float64("advisory", decoded.Score).
			Msg("model score differs from computed score")
	}
	return result, nil
}

// scoreFromDeductions applies per-category caps, sums the deduction
// points, and clamps the result to [0,100].
func scoreFromDeductions(deductions []Deduction) float64 {
	perCategory := map[string]float64{}
	for _, d := range deductions {
		perCategory[d.Category] += d.Points
	}
	total := 0.0
	for category, points := range perCategory {
		if limit, ok := categoryCaps[category]; ok && points > limit {
			points = limit
		}
		total += points
	}
	score := 100 - total
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// extractJSON slices the outermost brace pair out of prose-wrapped
// output.
func extractJSON(data []byte) ([]byte, bool) {
	start := bytes.IndexByte(data, '{')
	end := bytes.LastIndexByte(data, '}')
	if start == -1 || end == -1 || start >= end {
		return nil, false
	}
	return data[start : end+1], true
}
