package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/almanac-ai/almanac"
	"github.com/almanac-ai/almanac/webhook"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fact webhook; each saved fact triggers a pipeline pass",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	addr := serveFlags.addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	run := func(ctx context.Context) (almanac.RunSummary, error) {
		if a.inst != nil {
			a.inst.PipelineRuns.Add(ctx, 1)
		}
		return a.pipeline.Run(ctx)
	}
	srv := webhook.New(a.facts,
		webhook.WithLogger(a.logger),
		webhook.WithRunFunc(run),
	)
	return srv.ListenAndServe(ctx, addr)
}
