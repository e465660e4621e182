package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kycflow/internal/kyc/view"
)

var errVerificationFailed = errors.New("verification did not pass")

var verifyFlags struct {
	document string
	face     string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Upload a document and a face photo, then wait for the result",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	f := verifyCmd.Flags()
	f.StringVar(&verifyFlags.document, "document", "", "Path to the identity document image (required)")
	f.StringVar(&verifyFlags.face, "face", "", "Path to the face photo (required)")

	_ = verifyCmd.MarkFlagRequired("document")
	_ = verifyCmd.MarkFlagRequired("face")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	document, err := loadImage(verifyFlags.document)
	if err != nil {
		return err
	}
	face, err := loadImage(verifyFlags.face)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	if err := a.client.Health(cmd.Context()); err != nil {
		return fmt.Errorf("backend %s is not reachable: %w", a.client.BaseURL(), err)
	}

	out := cmd.OutOrStdout()
	var final view.State
	err = a.runWithMetrics(cmd.Context(), func(ctx context.Context) error {
		state, err := a.runner.Run(ctx, document, face, newPrinter(out))
		final = state
		return err
	})
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	fmt.Fprintln(out, final.Summary())
	if !final.Passed() {
		return errVerificationFailed
	}
	return nil
}
