package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mdmc/internal/app"
	"mdmc/internal/config"
)

var adminFlags struct {
	email     string
	password  string
	firstName string
	lastName  string
}

// withApp loads config, wires the stores and closes them after fn.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long:  "Create an active, verified administrator unless the e-mail is already taken",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminFlags.email == "" || adminFlags.password == "" {
			return fmt.Errorf("--email and --password are required")
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			created, err := a.Services.Accounts.EnsureAdmin(cmd.Context(),
				adminFlags.email, adminFlags.password, adminFlags.firstName, adminFlags.lastName)
			if err != nil {
				return err
			}
			if !created {
				cmd.Printf("An account for %s already exists\n", adminFlags.email)
				return nil
			}
			cmd.Printf("Created administrator %s\n", adminFlags.email)
			return nil
		})
	},
}

var pruneTokensCmd = &cobra.Command{
	Use:   "prune-tokens",
	Short: "Remove expired refresh tokens from every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			n, err := a.Services.Accounts.PruneRefreshTokens(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Pruned expired refresh tokens from %d account(s)\n", n)
			return nil
		})
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminFlags.email, "email", "", "administrator e-mail")
	f.StringVar(&adminFlags.password, "password", "", "administrator password")
	f.StringVar(&adminFlags.firstName, "first-name", "Admin", "first name")
	f.StringVar(&adminFlags.lastName, "last-name", "MDMC", "last name")

	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(pruneTokensCmd)
}
