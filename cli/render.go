package cli

import (
	"github.com/spf13/cobra"
)

func newRenderCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the Kubernetes manifests of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace(opts)
			if err != nil {
				return err
			}
			m, _, err := newManager(cmd.Context(), opts, managerNeeds{})
			if err != nil {
				return err
			}
			return m.Render(cmd.OutOrStdout(), ws)
		},
	}
}
