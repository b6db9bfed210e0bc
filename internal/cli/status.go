package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/envmgr/envmgr/internal/clierr"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print machine-readable output")
	rootCmd.AddCommand(statusCmd)
}

type statusReport struct {
	LoggedIn     bool   `json:"loggedIn"`
	APIURL       string `json:"apiUrl"`
	Linked       bool   `json:"linked"`
	Project      string `json:"project,omitempty"`
	Environment  string `json:"environment,omitempty"`
	EnvFilePath  string `json:"envFilePath,omitempty"`
	EnvFileFound bool   `json:"envFileFound"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and link state for this directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := loadGlobal()
		if err != nil {
			return err
		}
		report := statusReport{
			LoggedIn: g.Token != "",
			APIURL:   g.APIURL,
		}

		workdir, err := os.Getwd()
		if err != nil {
			return err
		}
		link, err := state.LoadLink(workdir)
		switch {
		case err == nil:
			report.Linked = true
			report.Project = link.ProjectName
			report.Environment = link.EnvironmentName
			report.EnvFilePath = link.EnvFilePath
			if _, statErr := os.Stat(filepath.Join(workdir, link.EnvFilePath)); statErr == nil {
				report.EnvFileFound = true
			}
		case errors.Is(err, clierr.ErrNotLinked):
			// unlinked is a normal state, not a failure
		default:
			return err
		}

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printStatusLine(cmd, "Logged in", report.LoggedIn)
		if report.APIURL != "" {
			cmd.Println(arrowMark() + " Server: " + report.APIURL)
		}
		printStatusLine(cmd, "Linked", report.Linked)
		if report.Linked {
			cmd.Println(arrowMark() + " Project: " + color.YellowString(report.Project) +
				" / " + color.YellowString(report.Environment))
			printStatusLine(cmd, "Variable file "+report.EnvFilePath, report.EnvFileFound)
		}
		return nil
	},
}

func printStatusLine(cmd *cobra.Command, label string, ok bool) {
	mark := failMark()
	if ok {
		mark = successMark()
	}
	cmd.Println(mark + " " + label)
}
