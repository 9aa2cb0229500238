package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reachykit/geno/internal/db"
)

func runsCmd() *cobra.Command {
	list := runsListCmd()
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and manage recorded runs",
		RunE:  list.RunE,
	}
	cmd.AddCommand(list)
	cmd.AddCommand(runsShowCmd())
	cmd.AddCommand(runsPruneCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := db.NewStore(storeDB).ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			for _, r := range runs {
				score := fmt.Sprintf("%.1f", r.Score)
				if r.EvaluationUnavailable {
					score = "n/a"
				}
				fmt.Printf("%s  %-10s  score %-5s  %s\n", r.ID, r.Status, score, r.Request)
			}
			return nil
		},
	}
}

func runsShowCmd() *cobra.Command {
	var showCode bool
	cmd := &cobra.Command{
		Use:          "show <run-id>",
		Short:        "Show one run with its attempt history",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			detail, err := db.NewStore(storeDB).GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run %s: %s", detail.ID, detail.Status)
			if detail.Reason != "" && detail.Reason != detail.Status {
				fmt.Printf(" (%s)", detail.Reason)
			}
			fmt.Println()
			fmt.Printf("Request: %s\n", detail.Request)
			if detail.EvaluationUnavailable {
				fmt.Println("Score: unavailable")
			} else if detail.Status != "running" {
				fmt.Printf("Score: %.1f/%.0f\n", detail.Score, detail.Threshold)
			}
			fmt.Printf("Corrections: %d, optimizations: %d\n", detail.CorrectionAttempts, detail.OptimizationAttempts)
			if detail.Error != "" {
				fmt.Printf("Error: %s\n", detail.Error)
			}

			if len(detail.Attempts) > 0 {
				fmt.Println("Attempts:")
				for _, a := range detail.Attempts {
					line := fmt.Sprintf("  %d. revision %d (%s)", a.Seq, a.Revision, a.Provenance)
					if a.Report != nil {
						if a.Report.Passing() {
							line += ", validation passed"
						} else {
							line += fmt.Sprintf(", %d fatal finding(s)", len(a.Report.Fatal()))
						}
					}
					if a.Eval != nil {
						line += fmt.Sprintf(", scored %.1f", a.Eval.Score)
					}
					fmt.Println(line)
					if a.Report != nil {
						for _, f := range a.Report.Fatal() {
							fmt.Printf("     - %s\n", f.Message)
						}
					}
				}
			}

			if showCode && detail.FinalCode != "" {
				fmt.Printf("Final code (revision %d):\n%s\n", detail.FinalRevision, detail.FinalCode)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCode, "code", false, "print the final code")
	return cmd
}

func runsPruneCmd() *cobra.Command {
	var keepLast int
	var keepDays int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune old runs from the database",
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

			if keepLast <= 0 && keepDays <= 0 {
				keepLast = cfg.Retention.KeepLast
				keepDays = cfg.Retention.KeepDays
			}
			if keepLast <= 0 && keepDays <= 0 {
				return fmt.Errorf("set --keep-last or --keep-days (or configure retention in .geno/config.json)")
			}
			if keepDays <= 0 {
				keepDays = 365 * 10
			}

			deleted, err := db.NewStore(storeDB).PruneRuns(cmd.Context(), time.Duration(keepDays)*24*time.Hour, keepLast)
			if err != nil {
				return err
			}
			log.Info().Msgf("deleted %d runs", deleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	return cmd
}
