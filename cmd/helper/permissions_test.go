package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHelper(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "mdmc-helper", SilenceUsage: true, SilenceErrors: true}
	cmd.AddCommand(permissionsCmd)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPermissionsForOneRole(t *testing.T) {
	out, err := runHelper(t, "permissions", "viewer")
	require.NoError(t, err)
	assert.Contains(t, out, "viewer:\n")
	assert.Contains(t, out, "  leads.read\n")
	assert.NotContains(t, out, "leads.write")
	assert.NotContains(t, out, "admin:")
}

func TestPermissionsForEveryRole(t *testing.T) {
	out, err := runHelper(t, "permissions")
	require.NoError(t, err)
	for _, role := range []string{"admin:", "manager:", "agent:", "viewer:"} {
		assert.Contains(t, out, role)
	}
}

func TestPermissionsRejectsUnknownRole(t *testing.T) {
	_, err := runHelper(t, "permissions", "owner")
	assert.ErrorContains(t, err, `unknown role "owner"`)
}

func TestCreateAdminRequiresCredentials(t *testing.T) {
	cmd := &cobra.Command{Use: "mdmc-helper", SilenceUsage: true, SilenceErrors: true}
	cmd.AddCommand(createAdminCmd)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"create-admin", "--email", "root@example.com"})
	assert.ErrorContains(t, cmd.Execute(), "--email and --password are required")
}
