package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd is the parent command for auth operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long: `Commands for signing in and inspecting the current session.

Credentials are never written to disk. Pass them to each run with --token
and --session, or through SPEARHEAD_TOKEN and SPEARHEAD_SESSION.`,
}

func init() {
	AuthCmd.AddCommand(loginCmd)
	AuthCmd.AddCommand(logoutCmd)
	AuthCmd.AddCommand(statusCmd)
}
