package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vigilnet/vigilnet/internal/cliutil"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Inspect delivered and pending digests",
}

var digestListCmd = &cobra.Command{
	Use:   "list [tenant-id]",
	Short: "List a tenant's recent digests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx, cancel := cmdCtx()
		defer cancel()

		ds, err := digests.ListByTenant(ctx, args[0], limit)
		if err != nil {
			return fmt.Errorf("list digests: %w", err)
		}

		if outputFormat(cmd) == "json" {
			return cliutil.JSON(ds)
		}

		table := cliutil.NewTable([]string{"ID", "SEVERITY", "DETECTIONS", "EVENTS", "WINDOW START", "WINDOW END", "CREATED"})
		for _, d := range ds {
			table.AddRow([]string{
				d.ID, string(d.Severity), fmt.Sprintf("%d", d.DetectionCount), fmt.Sprintf("%d", d.EventCount),
				d.WindowStart.Format(time.RFC3339), d.WindowEnd.Format(time.RFC3339), d.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		table.Render()
		return nil
	},
}

var digestShowCmd = &cobra.Command{
	Use:   "show [digest-id]",
	Short: "Show a digest's subject/body and delivery history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		d, err := digests.GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get digest: %w", err)
		}

		if outputFormat(cmd) == "json" {
			return cliutil.JSON(d)
		}

		fmt.Printf("Subject:  %s\n", d.Subject)
		fmt.Printf("Severity: %s\n", d.Severity)
		fmt.Printf("Window:   %s - %s\n", d.WindowStart.Format(time.RFC3339), d.WindowEnd.Format(time.RFC3339))
		fmt.Printf("Events:   %d across %d detections\n\n", d.EventCount, d.DetectionCount)
		fmt.Println(d.BodyText)

		deliveriesForDigest, err := deliveries.ListByDigest(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("list deliveries: %w", err)
		}
		if len(deliveriesForDigest) == 0 {
			cliutil.Warn("no delivery attempts recorded yet")
			return nil
		}

		fmt.Println()
		table := cliutil.NewTable([]string{"RECIPIENT", "STATUS", "SENT AT", "ERROR"})
		for _, e := range deliveriesForDigest {
			sentAt := "-"
			if e.SentAt != nil {
				sentAt = e.SentAt.Format(time.RFC3339)
			}
			errMsg := "-"
			if e.Error != nil {
				errMsg = *e.Error
			}
			table.AddRow([]string{e.Recipient, string(e.Status), sentAt, errMsg})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
	digestCmd.AddCommand(digestListCmd)
	digestCmd.AddCommand(digestShowCmd)

	digestListCmd.Flags().Int("limit", 20, "maximum digests to return")
}
