package cli

import (
	"fmt"

	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	varCmd.AddCommand(varAddCmd)
	rootCmd.AddCommand(varCmd)
}

var varCmd = &cobra.Command{
	Use:   "var",
	Short: "Manage variables in the linked environment",
}

var varAddCmd = &cobra.Command{
	Use:   "add <KEY> <value>",
	Short: "Create or overwrite one variable in the linked environment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		_, link, err := currentLink()
		if err != nil {
			return err
		}

		key := dotenv.NormalizeKey(args[0])
		if !dotenv.ValidKey(key) {
			return fmt.Errorf("invalid key %q: keys may contain only letters, digits and underscores", args[0])
		}

		v, err := c.UpsertVariable(cmd.Context(), link.EnvironmentID, key, args[1])
		if err != nil {
			return err
		}
		cmd.Println(successMark() + " Set " + color.YellowString(v.Key) +
			" in " + color.YellowString(link.EnvironmentName))
		if dotenv.LooksSecret(v.Key) {
			cmd.Println(arrowMark() + " " + v.Key + " looks like a secret: it will be masked in listings")
		}
		return nil
	},
}
