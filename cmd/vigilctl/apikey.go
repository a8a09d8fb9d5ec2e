package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vigilnet/vigilnet/internal/cliutil"
	"github.com/vigilnet/vigilnet/internal/models"
)

var apiKeyCmd = &cobra.Command{
	Use:     "api-key",
	Aliases: []string{"apikey"},
	Short:   "Manage tenant API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create [tenant-id]",
	Short: "Issue a new API key for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = "default"
		}

		ctx, cancel := cmdCtx()
		defer cancel()
		if _, err := tenants.GetByID(ctx, tenantID); err != nil {
			return fmt.Errorf("lookup tenant: %w", err)
		}

		token, err := generateToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		sum := sha256.Sum256([]byte(token))

		k := &models.APIKey{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			KeyHash:   hex.EncodeToString(sum[:]),
			Prefix:    token[:12],
			Name:      name,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}

		if err := apiKeys.Create(ctx, k); err != nil {
			return fmt.Errorf("create api key: %w", err)
		}

		cliutil.Success("api key created, shown once — store it now")
		fmt.Printf("  ID:    %s\n", k.ID)
		fmt.Printf("  Key:   %s\n", token)
		fmt.Printf("  Name:  %s\n", k.Name)
		return nil
	},
}

var apiKeyListCmd = &cobra.Command{
	Use:   "list [tenant-id]",
	Short: "List a tenant's API keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		keys, err := apiKeys.ListByTenant(ctx, args[0])
		if err != nil {
			return fmt.Errorf("list api keys: %w", err)
		}

		if outputFormat(cmd) == "json" {
			return cliutil.JSON(keys)
		}

		table := cliutil.NewTable([]string{"ID", "NAME", "PREFIX", "ACTIVE", "LAST USED", "CREATED"})
		for _, k := range keys {
			lastUsed := "never"
			if k.LastUsedAt != nil {
				lastUsed = k.LastUsedAt.Format("2006-01-02")
			}
			table.AddRow([]string{k.ID, k.Name, k.Prefix, fmt.Sprintf("%t", k.IsActive), lastUsed, k.CreatedAt.Format("2006-01-02")})
		}
		table.Render()
		return nil
	},
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke [key-id]",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdCtx()
		defer cancel()

		if err := apiKeys.Revoke(ctx, args[0]); err != nil {
			return fmt.Errorf("revoke api key: %w", err)
		}

		cliutil.Success("api key revoked")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd)
	apiKeyCmd.AddCommand(apiKeyListCmd)
	apiKeyCmd.AddCommand(apiKeyRevokeCmd)

	apiKeyCreateCmd.Flags().String("name", "", "label for the key (default: \"default\")")
}

// generateToken produces a 32-byte random token hex-encoded with a
// vnk_ prefix, matching the format the ingest auth gate expects to hash.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "vnk_" + hex.EncodeToString(buf), nil
}
