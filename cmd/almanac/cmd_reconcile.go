package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List attached documents the local mapping does not know about",
	Long: `Reconcile compares the agent's attached documents with the local mapping
and prints the untracked ones: documents created out-of-band, or left over
by a crash between document creation and the mapping write. Nothing is
modified; adopt or remove the listed documents manually.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	untracked, err := a.sync.Reconcile(ctx)
	if err != nil {
		return err
	}
	if len(untracked) == 0 {
		fmt.Println("no untracked documents; attachments match the mapping")
		return nil
	}
	fmt.Printf("%d untracked document(s) attached to the agent:\n", len(untracked))
	for _, doc := range untracked {
		fmt.Printf("  %s  %s\n", doc.ID, doc.Name)
	}
	return nil
}
