package cli

import (
	"github.com/spf13/cobra"

	"github.com/ez-pie/ez-workspace/manage"
)

func newServeCommand(opts *Options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve render, deploy and scale over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, cfg, err := newManager(cmd.Context(), opts, managerNeeds{cluster: true, ledger: true})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.ListenAddr
			}
			return manage.Serve(cmd.Context(), addr, m)
		},
	}

	cmd.Flags().StringVar(&addr, "listen", "", "Listen address (default $EZ_LISTEN_ADDR or :8080)")
	return cmd
}
