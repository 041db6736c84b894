// Package cli defines the ez-workspace command line.
package cli

import (
	"context"
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/ez-pie/ez-workspace/config"
	"github.com/ez-pie/ez-workspace/kubernetes"
	"github.com/ez-pie/ez-workspace/manage"
	"github.com/ez-pie/ez-workspace/repo"
	"github.com/ez-pie/ez-workspace/schemas"
)

const defaultWorkspaceFile = "workspace.yml"

// Options stores global CLI options shared between commands.
type Options struct {
	File    string
	EnvFile string
}

// Execute runs the command line with args until ctx is done.
func Execute(ctx context.Context, args []string) error {
	cmd := newRootCommand(&Options{})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func newRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ez-workspace",
		Short:         "Compose and deploy workspaces to Kubernetes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.PersistentFlags().StringVarP(&opts.File, "file", "f", defaultWorkspaceFile, "Path to the workspace document (YAML or JSON)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "Optional .env file read before the environment")

	cmd.AddCommand(
		newRenderCommand(opts),
		newDeployCommand(opts),
		newScaleCommand(opts, "suspend", "Scale a deployed workspace down to zero", 0),
		newScaleCommand(opts, "resume", "Scale a suspended workspace back up", 1),
		newServeCommand(opts),
	)
	return cmd
}

type managerNeeds struct {
	cluster bool
	ledger  bool
}

// newManager wires the manager from the environment configuration.
func newManager(ctx context.Context, opts *Options, needs managerNeeds) (*manage.Manager, *config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	logger := klog.FromContext(ctx)

	var deployer manage.Deployer
	if needs.cluster {
		clientset, err := kubernetes.NewClientset(cfg.ClientOptions())
		if err != nil {
			return nil, nil, err
		}
		deployer = kubernetes.NewDeployer(clientset)
	}

	var ledger manage.Ledger
	if needs.ledger && cfg.DatabaseDSN != "" {
		store, err := repo.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		ledger = store
	} else if needs.ledger {
		logger.V(2).Info("EZ_DATABASE_DSN not set, deployments are not recorded")
	}

	return manage.NewManager(deployer, ledger, manage.Options{
		Settings:     cfg.Settings(),
		ApplyTimeout: cfg.ApplyTimeout,
	}), cfg, nil
}

func loadWorkspace(opts *Options) (*schemas.WorkspaceSpec, error) {
	return schemas.LoadWorkspace(opts.File)
}
