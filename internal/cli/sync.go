package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var syncDryRun bool

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "show what would change without writing the file")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull remote variables into the local variable file",
	Long: `Downloads the linked environment's variables and writes them to the
configured variable file. The file is only written after the full response
has been received and parsed; --dry-run prints the pending changes and
leaves the file untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		workdir, link, err := currentLink()
		if err != nil {
			return err
		}

		s, cleanup := startSpinner("Pulling " + link.EnvironmentName + "...")
		defer cleanup()

		content, err := c.Export(cmd.Context(), link.EnvironmentID)
		if err != nil {
			s.FinalMSG = failMark() + " Sync failed"
			return err
		}
		remote := dotenv.ParseMap(content)
		s.Stop()

		filePath := filepath.Join(workdir, link.EnvFilePath)
		local := map[string]string{}
		if b, err := os.ReadFile(filePath); err == nil {
			local = dotenv.ParseMap(string(b))
		}

		d := diffVars(local, remote)
		if d.Empty() {
			cmd.Println(successMark() + " " + link.EnvFilePath + " is up to date")
			return nil
		}

		printDiff(cmd, d)
		if syncDryRun {
			cmd.Println(arrowMark() + " Dry run: " + link.EnvFilePath + " not modified")
			return nil
		}

		if err := os.WriteFile(filePath, []byte(dotenv.Serialize(remote)), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", link.EnvFilePath, err)
		}
		cmd.Printf("%s Wrote %d variables to %s\n", successMark(), len(remote), color.YellowString(link.EnvFilePath))
		return nil
	},
}

func printDiff(cmd *cobra.Command, d varDiff) {
	for _, k := range d.Added {
		cmd.Println("  " + color.GreenString("+ "+k))
	}
	for _, k := range d.Changed {
		cmd.Println("  " + color.YellowString("~ "+k))
	}
	for _, k := range d.Removed {
		cmd.Println("  " + color.RedString("- "+k))
	}
}
