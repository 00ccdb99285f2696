package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newAuthCommand() *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Link this installation with an account on the sharing server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.EnsureInstallID(); err != nil {
				return err
			}
			if server != "" {
				if err := a.cfg.SetAPIServer(server); err != nil {
					return err
				}
				fmt.Fprintf(a.deps.Stdout, "Server updated to %s.\n", a.cfg.APIServer)
			}
			return a.deps.NewService(a.cfg).Authenticate(a.deps.Stdout)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "use and remember a self-hosted server URL")
	return cmd
}
