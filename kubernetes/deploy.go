package kubernetes

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"

	"github.com/ez-pie/ez-workspace/schemas"
)

// ApplyError names the object whose apply failed. Objects before it in the graph
// were applied and are left in place.
type ApplyError struct {
	Kind      string
	Namespace string
	Name      string
	Err       error
}

func (e *ApplyError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("apply %s %s: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("apply %s %s/%s: %v", e.Kind, e.Namespace, e.Name, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Deployer applies resource graphs to a cluster and reads back what a previous
// deploy left there.
type Deployer struct {
	client kubernetes.Interface
}

func NewDeployer(client kubernetes.Interface) *Deployer {
	return &Deployer{client: client}
}

// WorkspaceExists reports whether the workspace Deployment is present.
func (d *Deployer) WorkspaceExists(ctx context.Context, ws *schemas.WorkspaceSpec) (bool, error) {
	deploy, err := d.getDeployment(ctx, ws)
	return deploy != nil, err
}

// getDeployment returns the workspace Deployment, or nil if there is none.
func (d *Deployer) getDeployment(ctx context.Context, ws *schemas.WorkspaceSpec) (*appsv1.Deployment, error) {
	deploy, err := d.client.AppsV1().Deployments(ws.Namespace).Get(ctx, FormatDeployName(ws), metav1.GetOptions{})
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %s/%s: %w", ws.Namespace, FormatDeployName(ws), err)
	}
	return deploy, nil
}

// LoadSecretMaterial returns the secret material for the next deploy of ws. Values
// issued by a previous deploy are kept unless rotate is set. They are read from the
// front door Secret, or, when the front door was renamed, from the Secret the
// running Deployment still references.
func (d *Deployer) LoadSecretMaterial(ctx context.Context, ws *schemas.WorkspaceSpec, rotate bool) (SecretMaterial, error) {
	logger := klog.FromContext(ctx)

	if rotate {
		logger.Info("Rotating workspace secrets", "workspace", ws.Name)
		return FreshSecretMaterial()
	}
	deploy, err := d.getDeployment(ctx, ws)
	if err != nil {
		return nil, err
	}
	if deploy == nil {
		logger.V(4).Info("No previous deployment, generating secrets", "workspace", ws.Name)
		return FreshSecretMaterial()
	}

	current := FormatFrontDoorSecretName(ws)
	for _, name := range secretCandidates(current, deploy) {
		secret, err := d.client.CoreV1().Secrets(ws.Namespace).Get(ctx, name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get secret %s/%s: %w", ws.Namespace, name, err)
		}
		// Only the front door holds the session key.
		if _, ok := secret.Data[SessionKeyName]; name != current && !ok {
			continue
		}

		existing := make(map[string]string, len(secret.Data))
		for k, v := range secret.Data {
			existing[k] = string(v)
		}
		material, err := ResolveSecretMaterial(existing, false, nil)
		if err != nil {
			return nil, err
		}
		if name != current {
			logger.Info("Front door renamed, reusing its previous secrets", "secret", klog.KObj(secret))
		} else {
			logger.V(4).Info("Reusing previous secrets", "secret", klog.KObj(secret))
		}
		return material, nil
	}

	logger.Info("Previous secrets not found, generating", "secret", klog.KRef(ws.Namespace, current))
	return FreshSecretMaterial()
}

// secretCandidates lists current first, then every Secret the containers of deploy
// load their environment from.
func secretCandidates(current string, deploy *appsv1.Deployment) []string {
	names := []string{current}
	seen := map[string]bool{current: true}
	for _, c := range deploy.Spec.Template.Spec.Containers {
		for _, src := range c.EnvFrom {
			if src.SecretRef == nil || seen[src.SecretRef.Name] {
				continue
			}
			seen[src.SecretRef.Name] = true
			names = append(names, src.SecretRef.Name)
		}
	}
	return names
}

// Apply creates or updates every object of graph, one at a time and in order. It
// stops at the first failure or when ctx is done.
func (d *Deployer) Apply(ctx context.Context, graph *ResourceGraph) error {
	logger := klog.FromContext(ctx)

	for _, obj := range graph.Objects {
		kind := obj.GetObjectKind().GroupVersionKind().Kind
		if err := ctx.Err(); err != nil {
			return &ApplyError{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName(), Err: err}
		}
		if err := d.applyObject(ctx, obj); err != nil {
			return &ApplyError{Kind: kind, Namespace: obj.GetNamespace(), Name: obj.GetName(), Err: err}
		}
		logger.V(4).Info("Applied object", "kind", kind, "object", klog.KObj(obj))
	}

	logger.Info("Workspace applied", "objects", len(graph.Objects), "host", graph.PrimaryHost)
	return nil
}

func (d *Deployer) applyObject(ctx context.Context, obj Object) error {
	ns := obj.GetNamespace()
	switch o := obj.(type) {
	case *corev1.Namespace:
		_, err := d.client.CoreV1().Namespaces().Create(ctx, o, metav1.CreateOptions{})
		if errors.IsAlreadyExists(err) {
			return nil
		}
		return err
	case *corev1.ServiceAccount:
		return upsert[*corev1.ServiceAccount](ctx, d.client.CoreV1().ServiceAccounts(ns), o, nil)
	case *rbacv1.Role:
		return upsert[*rbacv1.Role](ctx, d.client.RbacV1().Roles(ns), o, nil)
	case *rbacv1.RoleBinding:
		return upsert[*rbacv1.RoleBinding](ctx, d.client.RbacV1().RoleBindings(ns), o, nil)
	case *corev1.PersistentVolumeClaim:
		// A bound claim's spec is immutable.
		_, err := d.client.CoreV1().PersistentVolumeClaims(ns).Get(ctx, o.Name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			_, err = d.client.CoreV1().PersistentVolumeClaims(ns).Create(ctx, o, metav1.CreateOptions{})
		}
		return err
	case *appsv1.Deployment:
		return upsert[*appsv1.Deployment](ctx, d.client.AppsV1().Deployments(ns), o, nil)
	case *corev1.ConfigMap:
		return upsert[*corev1.ConfigMap](ctx, d.client.CoreV1().ConfigMaps(ns), o, nil)
	case *corev1.Secret:
		return upsert[*corev1.Secret](ctx, d.client.CoreV1().Secrets(ns), o, nil)
	case *corev1.Service:
		return upsert[*corev1.Service](ctx, d.client.CoreV1().Services(ns), o, func(existing, desired *corev1.Service) {
			desired.Spec.ClusterIP = existing.Spec.ClusterIP
			desired.Spec.ClusterIPs = existing.Spec.ClusterIPs
		})
	case *networkingv1.Ingress:
		return upsert[*networkingv1.Ingress](ctx, d.client.NetworkingV1().Ingresses(ns), o, nil)
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
}

type objectClient[T Object] interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (T, error)
	Create(ctx context.Context, obj T, opts metav1.CreateOptions) (T, error)
	Update(ctx context.Context, obj T, opts metav1.UpdateOptions) (T, error)
}

// upsert creates desired or replaces the live object with it. keep copies fields
// the server owns from the live object.
func upsert[T Object](ctx context.Context, client objectClient[T], desired T, keep func(existing, desired T)) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		existing, err := client.Get(ctx, desired.GetName(), metav1.GetOptions{})
		if errors.IsNotFound(err) {
			_, err = client.Create(ctx, desired, metav1.CreateOptions{})
			return err
		}
		if err != nil {
			return err
		}

		update := desired.DeepCopyObject().(T)
		update.SetResourceVersion(existing.GetResourceVersion())
		if keep != nil {
			keep(existing, update)
		}
		_, err = client.Update(ctx, update, metav1.UpdateOptions{})
		return err
	})
}

// Scale sets the replica count of a Deployment: 0 suspends a workspace, 1 resumes it.
func (d *Deployer) Scale(ctx context.Context, namespace, name string, replicas int32) error {
	logger := klog.FromContext(ctx)
	deploymentsClient := d.client.AppsV1().Deployments(namespace)

	retryErr := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		// Retrieve the latest version of Deployment before attempting update
		result, getErr := deploymentsClient.Get(ctx, name, metav1.GetOptions{})
		if getErr != nil {
			return getErr
		}

		result.Spec.Replicas = int32Ptr(replicas)
		_, updateErr := deploymentsClient.Update(ctx, result, metav1.UpdateOptions{})
		return updateErr
	})
	if retryErr != nil {
		return fmt.Errorf("scale deployment %s/%s to %d: %w", namespace, name, replicas, retryErr)
	}

	logger.Info("Scaled workspace", "deployment", klog.KRef(namespace, name), "replicas", replicas)
	return nil
}
