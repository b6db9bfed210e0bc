package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/envmgr/envmgr/internal/clierr"
	"github.com/envmgr/envmgr/internal/dotenv"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pushYes bool

func init() {
	pushCmd.Flags().BoolVarP(&pushYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(pushCmd)
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local variable file to the linked environment",
	Long: `Parses the configured variable file and bulk-upserts its entries into
the linked environment. Keys that exist remotely but not locally are left
alone: push never deletes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		workdir, link, err := currentLink()
		if err != nil {
			return err
		}

		filePath := filepath.Join(workdir, link.EnvFilePath)
		b, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("%w: %s", clierr.ErrEnvFileNotFound, link.EnvFilePath)
		}
		entries := dotenv.Parse(string(b))
		if len(entries) == 0 {
			cmd.Println(arrowMark() + " " + link.EnvFilePath + " contains no variables; nothing to push")
			return nil
		}

		// Informational only: names that look like secrets get flagged so
		// the user knows what they are about to upload.
		var secretKeys []string
		for _, e := range entries {
			if dotenv.LooksSecret(e.Key) {
				secretKeys = append(secretKeys, dotenv.NormalizeKey(e.Key))
			}
		}
		sort.Strings(secretKeys)

		cmd.Printf("Pushing %d variables to %s / %s\n",
			len(entries), color.YellowString(link.ProjectName), color.YellowString(link.EnvironmentName))
		if len(secretKeys) > 0 {
			cmd.Println(arrowMark() + " Likely secrets: " + strings.Join(secretKeys, ", "))
		}

		if !pushYes {
			ok, err := confirm("Continue?")
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println(failMark() + " Push aborted")
				return nil
			}
		}

		s, cleanup := startSpinner("Uploading...")
		defer cleanup()

		res, err := c.Import(cmd.Context(), link.EnvironmentID, string(b))
		if err != nil {
			s.FinalMSG = failMark() + " Push failed"
			return err
		}
		s.FinalMSG = fmt.Sprintf("%s Upserted %d variables (remote-only keys untouched)", successMark(), res.Count)
		return nil
	},
}
