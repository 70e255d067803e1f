package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mdmc/internal/models"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions [role]",
	Short: "Print the default permissions of a role",
	Long:  "Print the default permission set of one role, or of every role when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roles := models.Roles
		if len(args) == 1 {
			role := models.Role(args[0])
			if !role.Valid() {
				return fmt.Errorf("unknown role %q", args[0])
			}
			roles = []models.Role{role}
		}
		for _, role := range roles {
			cmd.Printf("%s:\n", role)
			for _, p := range models.PermissionsForRole(role) {
				cmd.Printf("  %s\n", p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(permissionsCmd)
}
