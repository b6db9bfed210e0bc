package cli

import (
	"fmt"
	"syscall"

	"github.com/envmgr/envmgr/internal/cli/client"
	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginEmail string

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email address")
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the configured server and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, g, err := loadGlobal()
		if err != nil {
			return err
		}

		email := loginEmail
		if email == "" {
			email, err = promptLine("Email: ")
			if err != nil {
				return err
			}
		}
		fmt.Print("Password: ")
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		s, cleanup := startSpinner("Logging in...")
		defer cleanup()

		c := client.New(g.APIURL, "")
		tokens, err := c.Login(cmd.Context(), email, string(pw))
		if err != nil {
			s.FinalMSG = failMark() + " Login failed"
			return err
		}

		g.Token = tokens.AccessToken
		g.RefreshToken = tokens.RefreshToken
		if err := state.SaveGlobal(dir, g); err != nil {
			return err
		}
		s.FinalMSG = successMark() + " Logged in as " + color.YellowString(email)
		return nil
	},
}
