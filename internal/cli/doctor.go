package cli

import (
	"errors"

	"github.com/envmgr/envmgr/internal/cli/client"
	"github.com/envmgr/envmgr/internal/clierr"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose connectivity, authentication and link state",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, g, err := loadGlobal()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		healthy := true

		// Reachability first, without credentials, so an expired token
		// cannot masquerade as a network problem.
		anon := client.New(g.APIURL, "")
		if err := anon.Health(ctx); err != nil {
			if errors.Is(err, clierr.ErrUnreachable) {
				cmd.Println(failMark() + " Server unreachable at " + color.YellowString(apiURLOrDefault(g.APIURL)))
				cmd.Println(arrowMark() + " Check the URL with " + color.YellowString("envmgr configure"))
				return errors.New("doctor found problems")
			}
			cmd.Println(failMark() + " Server responded with an error: " + err.Error())
			healthy = false
		} else {
			cmd.Println(successMark() + " Server reachable")
		}

		if g.Token == "" {
			cmd.Println(failMark() + " Not logged in")
			cmd.Println(arrowMark() + " Run " + color.YellowString("envmgr login"))
			healthy = false
		} else {
			authed := client.New(g.APIURL, g.Token)
			me, err := authed.Me(ctx)
			switch {
			case errors.Is(err, clierr.ErrUnauthorized):
				cmd.Println(failMark() + " Stored token rejected (expired or revoked)")
				cmd.Println(arrowMark() + " Run " + color.YellowString("envmgr login") + " again")
				healthy = false
			case err != nil:
				cmd.Println(failMark() + " Auth check failed: " + err.Error())
				healthy = false
			default:
				cmd.Println(successMark() + " Authenticated as " + color.YellowString(me.Email))
			}
		}

		if _, _, err := currentLink(); err != nil {
			cmd.Println(failMark() + " " + err.Error())
			healthy = false
		} else {
			cmd.Println(successMark() + " Directory is linked")
		}

		if !healthy {
			return errors.New("doctor found problems")
		}
		cmd.Println(successMark() + " Everything looks good")
		return nil
	},
}

func apiURLOrDefault(u string) string {
	if u == "" {
		return client.DefaultAPIURL
	}
	return u
}
