package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reachykit/geno/internal/codegen"
	"github.com/reachykit/geno/internal/config"
	"github.com/reachykit/geno/internal/db"
	"github.com/reachykit/geno/internal/evaluate"
	"github.com/reachykit/geno/internal/knowledge"
	"github.com/reachykit/geno/internal/llm"
	"github.com/reachykit/geno/internal/pipeline"
	"github.com/reachykit/geno/internal/revise"
	"github.com/reachykit/geno/internal/sandbox"
	"github.com/reachykit/geno/internal/validate"
)

func generateCmd() *cobra.Command {
	var (
		noOptimize  bool
		threshold   float64
		output      string
		execute     bool
		yes         bool
		historyPath string
	)
	cmd := &cobra.Command{
		Use:          "generate <request>",
		Short:        "Generate validated robot code for a natural-language request",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, workDir, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()
			cfg, err := loadConfig(workDir)
			if err != nil {
				return err
			}

			kb, err := knowledge.Load(cfg.Knowledge.Path)
			if err != nil {
				return fmt.Errorf("load knowledge base: %w", err)
			}

			genModel, err := cfg.ResolveModel(config.RoleGenerator)
			if err != nil {
				return err
			}
			evalModel, err := cfg.ResolveModel(config.RoleEvaluator)
			if err != nil {
				return err
			}
			genCompleter, err := llm.NewCompleter(genModel)
			if err != nil {
				return fmt.Errorf("generator model: %w", err)
			}
			evalCompleter, err := llm.NewCompleter(evalModel)
			if err != nil {
				return fmt.Errorf("evaluator model: %w", err)
			}

			pcfg := pipeline.Config{
				MaxCorrectionAttempts:   cfg.Pipeline.MaxCorrectionAttempts,
				MaxOptimizationAttempts: cfg.Pipeline.MaxOptimizationAttempts,
				ScoreThreshold:          cfg.Pipeline.ScoreThreshold,
			}
			if noOptimize {
				pcfg.MaxOptimizationAttempts = 0
			}
			if cmd.Flags().Changed("threshold") {
				pcfg.ScoreThreshold = threshold
			}

			req := codegen.Request{Text: strings.Join(args, " ")}
			if historyPath != "" {
				history, err := loadHistory(historyPath)
				if err != nil {
					return err
				}
				req.History = history
			}

			ctrl := pipeline.NewController(pcfg, pipeline.Deps{
				Generator: codegen.NewGenerator(genCompleter, kb),
				Validator: validate.New(kb.AllowedImports()),
				Evaluator: evaluate.NewEvaluator(evalCompleter, kb),
				Reviser:   revise.NewReviser(genCompleter, kb),
				Recorder:  db.NewStore(storeDB),
			})

			run := ctrl.Run(cmd.Context(), req)

			if execute && run.Usable() {
				if yes || confirmExecution(cmd) {
					executor := sandbox.NewGate(sandbox.NewLocalPython(
						cfg.Sandbox.Python, time.Duration(cfg.Sandbox.Timeout)*time.Second))
					result, err := executor.Execute(cmd.Context(), run.FinalArtifact.Code)
					if err != nil {
						log.Error().Err(err).Msg("execution failed to start")
					} else {
						run.Execution = &result
					}
				}
			}

			if output != "" && run.FinalArtifact != nil {
				if err := os.WriteFile(output, []byte(run.FinalArtifact.Code), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				log.Info().Str("path", output).Msg("final code written")
			}

			fmt.Print(pipeline.Summarize(run))

			if run.Status == pipeline.StageFailed || run.Status == pipeline.StageCancelled {
				return fmt.Errorf("run %s: %s (%s)", run.ID, run.Status, run.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "accept the first validated code without optimization passes")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "override the acceptance score threshold")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the final code to this file")
	cmd.Flags().BoolVar(&execute, "execute", false, "run the final code locally after acceptance")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the execution confirmation prompt")
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with prior conversation turns")
	return cmd
}

func loadHistory(path string) ([]codegen.Turn, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []codegen.Turn
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return history, nil
}

func confirmExecution(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "Execute the generated code? [y/N]: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
