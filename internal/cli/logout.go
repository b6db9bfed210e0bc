package cli

import (
	"github.com/envmgr/envmgr/internal/cli/client"
	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, g, err := loadGlobal()
		if err != nil {
			return err
		}
		if g.Token == "" {
			cmd.Println(arrowMark() + " Already logged out")
			return nil
		}

		// Best effort server-side revocation; local removal happens
		// regardless.
		if g.RefreshToken != "" {
			c := client.New(g.APIURL, g.Token)
			_ = c.Logout(cmd.Context(), g.RefreshToken)
		}

		g.Token = ""
		g.RefreshToken = ""
		if err := state.SaveGlobal(dir, g); err != nil {
			return err
		}
		cmd.Println(successMark() + " Logged out")
		return nil
	},
}
