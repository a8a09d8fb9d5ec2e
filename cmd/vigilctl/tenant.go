package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vigilnet/vigilnet/internal/cliutil"
	"github.com/vigilnet/vigilnet/internal/models"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		ts, err := tenants.List(ctx)
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}

		if outputFormat(cmd) == "json" {
			return cliutil.JSON(ts)
		}

		table := cliutil.NewTable([]string{"ID", "NAME", "STATUS", "PLAN", "LOCALE", "TIMEZONE", "CREATED"})
		for _, t := range ts {
			table.AddRow([]string{t.ID, t.Name, t.Status, string(t.PlanTier), t.DefaultLocale, t.Timezone, t.CreatedAt.Format("2006-01-02")})
		}
		table.Render()
		return nil
	},
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		plan, _ := cmd.Flags().GetString("plan")
		locale, _ := cmd.Flags().GetString("locale")
		timezone, _ := cmd.Flags().GetString("timezone")
		if name == "" {
			return fmt.Errorf("--name is required")
		}

		t := &models.Tenant{
			ID:            uuid.New().String(),
			Name:          name,
			Status:        "active",
			PlanTier:      models.PlanTier(plan),
			DefaultLocale: locale,
			Timezone:      timezone,
			CreatedAt:     time.Now().UTC(),
		}

		ctx, cancel := cmdCtx()
		defer cancel()
		if err := tenants.Create(ctx, t); err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}

		cliutil.Success("tenant created")
		fmt.Printf("  ID:    %s\n", t.ID)
		fmt.Printf("  Name:  %s\n", t.Name)
		fmt.Printf("  Plan:  %s\n", t.PlanTier)
		return nil
	},
}

var tenantShowCmd = &cobra.Command{
	Use:   "show [tenant-id]",
	Short: "Show tenant details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		t, err := tenants.GetByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get tenant: %w", err)
		}

		if outputFormat(cmd) == "json" {
			return cliutil.JSON(t)
		}

		fmt.Printf("ID:       %s\n", t.ID)
		fmt.Printf("Name:     %s\n", t.Name)
		fmt.Printf("Status:   %s\n", t.Status)
		fmt.Printf("Plan:     %s\n", t.PlanTier)
		fmt.Printf("Locale:   %s\n", t.DefaultLocale)
		fmt.Printf("Timezone: %s\n", t.Timezone)
		fmt.Printf("Created:  %s\n", t.CreatedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tenantCmd)
	tenantCmd.AddCommand(tenantListCmd)
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantShowCmd)

	tenantCreateCmd.Flags().String("name", "", "tenant name (required)")
	tenantCreateCmd.Flags().String("plan", string(models.PlanFree), "plan tier: free, basic, pro, enterprise")
	tenantCreateCmd.Flags().String("locale", "en", "default locale for digest emails")
	tenantCreateCmd.Flags().String("timezone", "UTC", "tenant timezone")
}
