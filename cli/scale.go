package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newScaleCommand suspends (replicas 0) or resumes (replicas 1) the workspace of
// the document.
func newScaleCommand(opts *Options, use, short string, replicas int32) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := loadWorkspace(opts)
			if err != nil {
				return err
			}
			m, _, err := newManager(cmd.Context(), opts, managerNeeds{cluster: true})
			if err != nil {
				return err
			}

			scale, state := m.Resume, "resumed"
			if replicas == 0 {
				scale, state = m.Suspend, "suspended"
			}
			if err := scale(cmd.Context(), ws.Namespace, ws.Name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s %s\n", ws.Name, state)
			return nil
		},
	}
}
