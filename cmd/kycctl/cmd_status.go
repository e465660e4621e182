package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/view"
)

var statusFlags struct {
	watch bool
}

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the verification status of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusFlags.watch, "watch", "w", false, "Keep polling until the session is final")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	sessionID := models.SessionID(args[0])
	out := cmd.OutOrStdout()

	if !statusFlags.watch {
		state, err := a.runner.Check(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		fmt.Fprintln(out, state.Summary())
		return nil
	}

	var final view.State
	err = a.runWithMetrics(cmd.Context(), func(ctx context.Context) error {
		state, err := a.runner.Watch(ctx, sessionID, newPrinter(out))
		final = state
		return err
	})
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintln(out, final.Summary())
	return nil
}
