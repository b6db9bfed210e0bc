// Package cli implements the envmgr terminal client commands.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/envmgr/envmgr/internal/cli/client"
	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/envmgr/envmgr/internal/clierr"
	"github.com/envmgr/envmgr/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "envmgr",
	Short: "envmgr - sync environment variables between your machine and the server",
	Long: `envmgr keeps the variables in a local dotenv file in step with an
environment managed on an envmgrd server.

Typical workflow:
  envmgr login                 # authenticate against the server
  envmgr link                  # bind this directory to a project environment
  envmgr sync                  # pull remote variables into the local file
  envmgr push                  # upload local changes (never deletes remote keys)

Run 'envmgr help <command>' for details on a specific command.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
}

// Execute runs the root command and maps failures to exit code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+err.Error())
		os.Exit(1)
	}
}

// loadGlobal reads the user-wide config from ~/.envmgr.
func loadGlobal() (string, *state.Global, error) {
	dir, err := state.DefaultGlobalDir()
	if err != nil {
		return "", nil, err
	}
	g, err := state.LoadGlobal(dir)
	if err != nil {
		return "", nil, err
	}
	return dir, g, nil
}

// apiClient builds an authenticated client from the stored session. An
// expired access token is rotated via the stored refresh token and the
// new pair written back to the global config.
func apiClient() (*client.Client, error) {
	dir, g, err := loadGlobal()
	if err != nil {
		return nil, err
	}
	if g.Token == "" {
		return nil, fmt.Errorf("%w: run %s first", clierr.ErrNotLoggedIn, color.YellowString("envmgr login"))
	}
	c := client.New(g.APIURL, g.Token)
	if g.RefreshToken != "" {
		c.WithRefresh(g.RefreshToken, func(t client.Tokens) error {
			g.Token = t.AccessToken
			g.RefreshToken = t.RefreshToken
			return state.SaveGlobal(dir, g)
		})
	}
	return c, nil
}

// currentLink loads the link record for the working directory.
func currentLink() (string, *state.Link, error) {
	workdir, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("resolve working directory: %w", err)
	}
	link, err := state.LoadLink(workdir)
	if err != nil {
		if errors.Is(err, clierr.ErrNotLinked) {
			return "", nil, fmt.Errorf("%w: run %s first", clierr.ErrNotLinked, color.YellowString("envmgr link"))
		}
		return "", nil, err
	}
	return workdir, link, nil
}
