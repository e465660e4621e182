package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/view"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Inspect and remove verification sessions (requires the admin token)",
}

var adminListFlags struct {
	page   int
	size   int
	status string
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runAdminList,
}

var adminGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show one session with its pipeline stages",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminGet,
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count sessions per status",
	Args:  cobra.NoArgs,
	RunE:  runAdminStats,
}

var adminImageFlags struct {
	output string
}

var adminImageCmd = &cobra.Command{
	Use:   "image <upload-id>",
	Short: "Download an uploaded image (ids are listed by 'admin get')",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminImage,
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its uploads",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminDelete,
}

func init() {
	f := adminListCmd.Flags()
	f.IntVar(&adminListFlags.page, "page", 0, "Zero-based page number")
	f.IntVar(&adminListFlags.size, "size", 20, "Page size")
	f.StringVar(&adminListFlags.status, "status", models.StatusFilterAll, "Status filter: ALL, PENDING, IN_PROGRESS, COMPLETED, FAILED")

	adminImageCmd.Flags().StringVarP(&adminImageFlags.output, "output", "o", "", "File to write the image to (required)")
	_ = adminImageCmd.MarkFlagRequired("output")

	adminCmd.AddCommand(adminListCmd)
	adminCmd.AddCommand(adminGetCmd)
	adminCmd.AddCommand(adminStatsCmd)
	adminCmd.AddCommand(adminImageCmd)
	adminCmd.AddCommand(adminDeleteCmd)
}

func runAdminList(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	page, err := a.client.ListSessions(cmd.Context(), models.ListParams{
		Page:   adminListFlags.page,
		Size:   adminListFlags.size,
		Status: adminListFlags.status,
	})
	if err != nil {
		return fmt.Errorf("admin list: %w", err)
	}
	writeProcessTable(cmd.OutOrStdout(), page)
	return nil
}

func runAdminGet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	process, err := a.client.GetSession(cmd.Context(), models.SessionID(args[0]))
	if err != nil {
		return fmt.Errorf("admin get: %w", err)
	}
	writeProcess(cmd.OutOrStdout(), process)
	return nil
}

func runAdminStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	stats, err := a.client.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("admin stats: %w", err)
	}
	writeStats(cmd.OutOrStdout(), stats)
	return nil
}

func runAdminImage(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	img, err := a.client.GetImage(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("admin image: %w", err)
	}
	if err := os.WriteFile(adminImageFlags.output, img.Data, 0o600); err != nil {
		return fmt.Errorf("admin image: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (%s) to %s\n", len(img.Data), orDash(img.ContentType), adminImageFlags.output)
	return nil
}

func runAdminDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	if err := a.client.DeleteSession(cmd.Context(), models.SessionID(args[0])); err != nil {
		return fmt.Errorf("admin delete: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func writeProcessTable(out io.Writer, page models.Page[models.Process]) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSER\tSTATUS\tPLATFORM\tCREATED")
	for _, p := range page.Content {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.UserID, view.StatusLabel(p.Status), orDash(p.ClientPlatform), formatTime(p.CreatedTime.Time))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "Page %d of %d (%d sessions)\n", page.Number+1, max(page.TotalPages, 1), page.TotalElements)
}

func writeStats(out io.Writer, stats models.Stats) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", stats.Total)
	fmt.Fprintf(tw, "%s\t%d\n", view.StatusLabel(models.StatusPending), stats.Pending)
	fmt.Fprintf(tw, "%s\t%d\n", view.StatusLabel(models.StatusInProgress), stats.InProgress)
	fmt.Fprintf(tw, "%s\t%d\n", view.StatusLabel(models.StatusCompleted), stats.Completed)
	fmt.Fprintf(tw, "%s\t%d\n", view.StatusLabel(models.StatusFailed), stats.Failed)
	fmt.Fprintf(tw, "Pass rate\t%.1f%%\n", stats.PassRate())
	_ = tw.Flush()
}

func writeProcess(out io.Writer, p models.Process) {
	fmt.Fprintf(out, "Session:  %s\n", p.ID)
	fmt.Fprintf(out, "User:     %s\n", p.UserID)
	fmt.Fprintf(out, "Status:   %s\n", view.StatusLabel(p.Status))
	fmt.Fprintf(out, "Platform: %s\n", orDash(p.ClientPlatform))
	fmt.Fprintf(out, "Created:  %s\n", formatTime(p.CreatedTime.Time))
	fmt.Fprintf(out, "Updated:  %s\n", formatTime(p.UpdatedTime.Time))
	if p.IDCardInfo != nil {
		fmt.Fprintf(out, "Document: %s (%s) image %s\n", p.IDCardInfo.FileName, p.IDCardInfo.VerificationStatus, orDash(p.IDCardInfo.ImageID()))
	}
	if p.FaceInfo != nil {
		fmt.Fprintf(out, "Face:     %s (%s) image %s\n", p.FaceInfo.FileName, p.FaceInfo.VerificationStatus, orDash(p.FaceInfo.ImageID()))
	}
	if len(p.WorkflowNodes) > 0 {
		fmt.Fprintln(out, "Stages:")
		for _, n := range p.WorkflowNodes {
			fmt.Fprintf(out, "  %-20s %s\n", models.NodeLabel(n.NodeName), view.StatusLabel(n.Status))
		}
	}
	if p.FinalResult != nil {
		fmt.Fprintf(out, "Result:   passed=%t confidence=%.2f %s\n",
			p.FinalResult.Passed, p.FinalResult.Confidence, p.FinalResult.Reason)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
