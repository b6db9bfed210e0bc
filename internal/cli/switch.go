package cli

import (
	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(switchCmd)
}

var switchCmd = &cobra.Command{
	Use:   "switch <environment|alias>",
	Short: "Point the link at a different environment of the same project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		workdir, link, err := currentLink()
		if err != nil {
			return err
		}

		envs, err := c.Environments(cmd.Context(), link.ProjectID)
		if err != nil {
			return err
		}
		env, err := resolveEnvironment(link.EnvAliases, envs, args[0])
		if err != nil {
			return err
		}

		link.EnvironmentID = env.ID
		link.EnvironmentName = env.Name
		if err := state.SaveLink(workdir, link); err != nil {
			return err
		}
		cmd.Println(successMark() + " Switched to " + color.YellowString(env.Name))
		return nil
	},
}
