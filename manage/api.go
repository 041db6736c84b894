package manage

import (
	"context"
	"errors"
	"io"
	"time"

	"k8s.io/klog/v2"

	"github.com/ez-pie/ez-workspace/kubernetes"
	"github.com/ez-pie/ez-workspace/repo"
	"github.com/ez-pie/ez-workspace/schemas"
)

var (
	ErrNoCluster = errors.New("no cluster configured")
	ErrNoLedger  = errors.New("no deployment ledger configured")
)

// Deployer is the cluster side of a deploy. *kubernetes.Deployer implements it.
type Deployer interface {
	LoadSecretMaterial(ctx context.Context, ws *schemas.WorkspaceSpec, rotate bool) (kubernetes.SecretMaterial, error)
	Apply(ctx context.Context, graph *kubernetes.ResourceGraph) error
	Scale(ctx context.Context, namespace, name string, replicas int32) error
}

// Ledger records deployments. *repo.Store implements it.
type Ledger interface {
	Record(ctx context.Context, d *repo.Deployment) error
	List(ctx context.Context, namespace string, offset, limit int) ([]repo.Deployment, error)
	Latest(ctx context.Context, namespace, workspace string) (*repo.Deployment, error)
}

type Options struct {
	Settings kubernetes.Settings
	// ApplyTimeout bounds one deploy. Zero means no bound.
	ApplyTimeout time.Duration
}

// Manager renders, deploys and scales workspaces. deployer and ledger may be nil:
// render works without a cluster and deploys are not recorded without a ledger.
type Manager struct {
	deployer Deployer
	ledger   Ledger
	opts     Options
	now      func() time.Time
}

func NewManager(deployer Deployer, ledger Ledger, opts Options) *Manager {
	return &Manager{deployer: deployer, ledger: ledger, opts: opts, now: time.Now}
}

func (m *Manager) compose(ws *schemas.WorkspaceSpec, secrets kubernetes.SecretMaterial) (*kubernetes.ResourceGraph, error) {
	return kubernetes.Compose(ws, kubernetes.Options{
		Settings: m.opts.Settings,
		Secrets:  secrets,
		Now:      m.now(),
	})
}

// Render writes the manifests of ws with freshly generated secret material.
func (m *Manager) Render(w io.Writer, ws *schemas.WorkspaceSpec) error {
	secrets, err := kubernetes.FreshSecretMaterial()
	if err != nil {
		return err
	}
	graph, err := m.compose(ws, secrets)
	if err != nil {
		return err
	}
	return kubernetes.Render(w, graph)
}

// Deploy composes ws with the secret material of its previous deploy, unless
// rotate is set, and applies it.
func (m *Manager) Deploy(ctx context.Context, ws *schemas.WorkspaceSpec, rotate bool) (*kubernetes.ResourceGraph, error) {
	if m.deployer == nil {
		return nil, ErrNoCluster
	}
	if m.opts.ApplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ApplyTimeout)
		defer cancel()
	}
	logger := klog.FromContext(ctx)

	secrets, err := m.deployer.LoadSecretMaterial(ctx, ws, rotate)
	if err != nil {
		return nil, err
	}
	graph, err := m.compose(ws, secrets)
	if err != nil {
		return nil, err
	}
	if err := m.deployer.Apply(ctx, graph); err != nil {
		return nil, err
	}

	if m.ledger != nil {
		d := &repo.Deployment{
			Workspace: ws.Name,
			Namespace: ws.Namespace,
			Host:      graph.PrimaryHost,
			Rotated:   rotate,
			Objects:   len(graph.Objects),
			State:     graph.State(),
		}
		// ledger writes are best effort
		if err := m.ledger.Record(ctx, d); err != nil {
			logger.Error(err, "Unable to record deployment", "workspace", ws.Name)
		}
	}
	return graph, nil
}

func (m *Manager) Suspend(ctx context.Context, namespace, name string) error {
	return m.scale(ctx, namespace, name, 0)
}

func (m *Manager) Resume(ctx context.Context, namespace, name string) error {
	return m.scale(ctx, namespace, name, 1)
}

func (m *Manager) scale(ctx context.Context, namespace, name string, replicas int32) error {
	if m.deployer == nil {
		return ErrNoCluster
	}
	deployName := kubernetes.FormatDeployName(&schemas.WorkspaceSpec{Name: name})
	return m.deployer.Scale(ctx, namespace, deployName, replicas)
}

func (m *Manager) List(ctx context.Context, namespace string, offset, limit int) ([]repo.Deployment, error) {
	if m.ledger == nil {
		return nil, ErrNoLedger
	}
	return m.ledger.List(ctx, namespace, offset, limit)
}

func (m *Manager) Latest(ctx context.Context, namespace, name string) (*repo.Deployment, error) {
	if m.ledger == nil {
		return nil, ErrNoLedger
	}
	return m.ledger.Latest(ctx, namespace, name)
}
