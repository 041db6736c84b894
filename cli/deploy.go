package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeployCommand(opts *Options) *cobra.Command {
	var rotate bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply the workspace to the cluster, keeping previously issued secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace(opts)
			if err != nil {
				return err
			}
			m, _, err := newManager(cmd.Context(), opts, managerNeeds{cluster: true, ledger: true})
			if err != nil {
				return err
			}

			graph, err := m.Deploy(cmd.Context(), ws, rotate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace deployed successfully! Available at https://%s\n", graph.PrimaryHost)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&rotate, "rotate-secrets", "r", false, "Generate new secret material instead of reusing the deployed one")
	return cmd
}
