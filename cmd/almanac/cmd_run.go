package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runFlags struct {
	strict bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline pass: plugins → artifacts → knowledge sync",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runFlags.strict, "strict", false, "Exit nonzero when any key fails, not only on fatal errors")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if a.inst != nil {
		a.inst.PipelineRuns.Add(ctx, 1)
	}
	summary, err := a.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(summary.String())
	if runFlags.strict && !summary.OK() {
		return fmt.Errorf("run %s completed with failures", summary.RunID)
	}
	return nil
}
