package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sms-decline-analysis/internal/pipeline"
	"sms-decline-analysis/internal/store"
)

var (
	noCharts bool
	noStore  bool
)

var runCmd = &cobra.Command{
	Use:   "run [report.csv]",
	Short: "Run the analysis once and print the tables",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalysis,
}

func init() {
	runCmd.Flags().BoolVar(&noCharts, "no-charts", false, "skip PNG chart rendering")
	runCmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the run in the database")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	input := ""
	if len(args) == 1 {
		input = args[0]
	}
	spec := cfg.RunSpec(input)
	if noCharts {
		spec.Export.Charts = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	var st pipeline.Store
	if !noStore {
		db, err := store.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.SaveRun(runID, spec); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		st = db
	}

	rep, files, err := pipeline.Run(ctx, runID, spec, st)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pipeline.Render(out, rep)
	fmt.Fprintf(out, "\nRun %s wrote %d files:\n", runID, len(files))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f.Path)
	}
	return nil
}
