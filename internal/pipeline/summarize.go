package pipeline

import (
	"fmt"
	"strings"
)

// Summarize renders a human-readable report of one finished run.
func Summarize(run *Run) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Run %s: %s", run.ID, strings.ToUpper(run.Status))
	if run.Reason != "" && run.Reason != run.Status {
		fmt.Fprintf(&sb, " (%s)", run.Reason)
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Request: %s\n", run.Request.Text)

	switch run.Status {
	case StageAccepted:
		fmt.Fprintf(&sb, "Final score %.1f/100 meets the %.1f threshold after %d correction(s) and %d optimization(s).\n",
			run.FinalScore, run.Config.ScoreThreshold, run.CorrectionAttempts, run.OptimizationAttempts)
	case StageExhausted:
		if run.EvaluationUnavailable {
			sb.WriteString("Evaluation was unavailable; the last validated code is returned without a score.\n")
		} else {
			fmt.Fprintf(&sb, "Best-effort code scored %.1f/100, below the %.1f threshold. Outstanding critiques:\n",
				run.FinalScore, run.Config.ScoreThreshold)
			if last := run.LastAttempt(); last != nil && last.Eval != nil {
				for _, d := range last.Eval.Deductions {
					fmt.Fprintf(&sb, "  - [%s] %s\n", d.Category, d.Message)
				}
			}
		}
	case StageFailed:
		sb.WriteString("The pipeline could not produce acceptable code.\n")
		if last := run.LastAttempt(); last != nil && last.Report != nil {
			for _, f := range last.Report.Fatal() {
				fmt.Fprintf(&sb, "  - %s\n", f.Message)
			}
		}
		if run.Err != "" {
			fmt.Fprintf(&sb, "  error: %s\n", run.Err)
		}
	case StageCancelled:
		sb.WriteString("The run was cancelled before completion.\n")
	}

	if len(run.Attempts) > 0 {
		sb.WriteString("History:\n")
		for i, att := range run.Attempts {
			line := fmt.Sprintf("  %d. revision %d (%s)", i+1, att.Artifact.Revision, att.Artifact.Provenance)
			if att.Report != nil {
				if att.Report.Passing() {
					line += ", validation passed"
				} else {
					line += fmt.Sprintf(", %d fatal finding(s)", len(att.Report.Fatal()))
				}
			}
			if att.Eval != nil {
				line += fmt.Sprintf(", scored %.1f", att.Eval.Score)
			}
			sb.WriteString(line + "\n")
		}
	}

	if run.Execution != nil {
		if run.Execution.Success {
			sb.WriteString("Execution succeeded.\n")
		} else if run.Execution.Exception != nil {
			fmt.Fprintf(&sb, "Execution failed: %s: %s\n", run.Execution.Exception.Type, run.Execution.Exception.Message)
		} else {
			sb.WriteString("Execution failed.\n")
		}
	}

	return sb.String()
}
