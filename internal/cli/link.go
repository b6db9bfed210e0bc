package cli

import (
	"fmt"
	"os"

	"github.com/envmgr/envmgr/internal/cli/state"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(linkCmd)
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Bind this directory to a remote project environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		workdir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		ctx := cmd.Context()

		orgs, err := c.Orgs(ctx)
		if err != nil {
			return err
		}
		if len(orgs) == 0 {
			return fmt.Errorf("you are not a member of any organization")
		}
		orgNames := make([]string, len(orgs))
		for i, o := range orgs {
			orgNames[i] = o.Name
		}
		oi := 0
		if len(orgs) > 1 {
			fmt.Println("Organizations:")
			oi, err = promptChoice("Select organization: ", orgNames)
			if err != nil {
				return err
			}
		}

		projects, err := c.Projects(ctx, orgs[oi].ID)
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			return fmt.Errorf("no projects visible in %s", orgs[oi].Name)
		}
		projectNames := make([]string, len(projects))
		for i, p := range projects {
			projectNames[i] = p.Name
		}
		fmt.Println("Projects:")
		pi, err := promptChoice("Select project: ", projectNames)
		if err != nil {
			return err
		}

		envs, err := c.Environments(ctx, projects[pi].ID)
		if err != nil {
			return err
		}
		if len(envs) == 0 {
			return fmt.Errorf("project %s has no environments: create one with %s",
				projects[pi].Name, color.YellowString("envmgr env create"))
		}
		envNames := make([]string, len(envs))
		for i, e := range envs {
			envNames[i] = e.Name
		}
		fmt.Println("Environments:")
		ei, err := promptChoice("Select environment: ", envNames)
		if err != nil {
			return err
		}

		envFile, err := promptLine(fmt.Sprintf("Variable file [%s]: ", state.DefaultEnvFile))
		if err != nil {
			return err
		}
		if envFile == "" {
			envFile = state.DefaultEnvFile
		}

		link := &state.Link{
			ProjectID:       projects[pi].ID,
			ProjectName:     projects[pi].Name,
			EnvironmentID:   envs[ei].ID,
			EnvironmentName: envs[ei].Name,
			EnvFilePath:     envFile,
		}
		if err := state.SaveLink(workdir, link); err != nil {
			return err
		}
		cmd.Println(successMark() + " Linked to " +
			color.YellowString(projects[pi].Name) + " / " + color.YellowString(envs[ei].Name))
		cmd.Println(arrowMark() + " Run " + color.YellowString("envmgr sync") + " to pull variables into " + envFile)
		return nil
	},
}
