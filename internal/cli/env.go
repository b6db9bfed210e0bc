package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	envCmd.AddCommand(envCreateCmd)
	rootCmd.AddCommand(envCmd)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage the linked project's environments",
}

var envCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new environment in the linked project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		_, link, err := currentLink()
		if err != nil {
			return err
		}

		env, err := c.CreateEnvironment(cmd.Context(), link.ProjectID, args[0])
		if err != nil {
			return err
		}
		cmd.Println(successMark() + " Created environment " + color.YellowString(env.Name) +
			" in " + color.YellowString(link.ProjectName))
		cmd.Println(arrowMark() + " Switch to it with " + color.YellowString("envmgr switch "+env.Name))
		return nil
	},
}
