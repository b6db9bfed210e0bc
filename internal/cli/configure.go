package cli

import (
	"fmt"
	"net/url"

	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var configureAPIURL string

func init() {
	configureCmd.Flags().StringVar(&configureAPIURL, "api-url", "", "base URL of the envmgrd server")
	rootCmd.AddCommand(configureCmd)
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the server URL used by all commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, g, err := loadGlobal()
		if err != nil {
			return err
		}

		apiURL := configureAPIURL
		if apiURL == "" {
			apiURL, err = promptLine("API URL: ")
			if err != nil {
				return err
			}
		}
		u, err := url.Parse(apiURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid API URL %q: expected e.g. https://envmgr.example.com", apiURL)
		}

		g.APIURL = apiURL
		if err := state.SaveGlobal(dir, g); err != nil {
			return err
		}
		cmd.Println(successMark() + " Server set to " + color.YellowString(apiURL))
		return nil
	},
}
