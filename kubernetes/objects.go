package kubernetes

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/ez-pie/ez-workspace/schemas"
)

const (
	appLabel              = "ezpie-app"
	restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"
	ingressClassName      = "nginx"
)

var (
	typeNamespace      = metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"}
	typeServiceAccount = metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"}
	typeRole           = metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "Role"}
	typeRoleBinding    = metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "RoleBinding"}
	typePvc            = metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"}
	typeDeployment     = metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"}
	typeConfigMap      = metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"}
	typeSecret         = metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"}
	typeService        = metav1.TypeMeta{APIVersion: "v1", Kind: "Service"}
	typeIngress        = metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "Ingress"}
)

func workspaceLabels(ws *schemas.WorkspaceSpec) map[string]string {
	return map[string]string{appLabel: FormatDeployName(ws)}
}

func newNamespace(ws *schemas.WorkspaceSpec) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: typeNamespace,
		ObjectMeta: metav1.ObjectMeta{
			Name:   ws.Namespace,
			Labels: workspaceLabels(ws),
		},
	}
}

func newServiceAccount(ws *schemas.WorkspaceSpec) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		TypeMeta:   typeServiceAccount,
		ObjectMeta: objectMeta(ws, formatServiceAccountName(ws)),
	}
}

// newRole grants the workspace full control over its own namespace's workloads.
func newRole(ws *schemas.WorkspaceSpec) *rbacv1.Role {
	verbs := []string{"create", "get", "list", "watch", "update", "patch", "delete"}
	return &rbacv1.Role{
		TypeMeta:   typeRole,
		ObjectMeta: objectMeta(ws, formatRoleName(ws)),
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{""},
				Resources: []string{"pods", "services", "configmaps", "secrets"},
				Verbs:     verbs,
			},
			{
				APIGroups: []string{"apps"},
				Resources: []string{"deployments", "statefulsets", "daemonsets"},
				Verbs:     verbs,
			},
			{
				APIGroups: []string{"networking.k8s.io"},
				Resources: []string{"ingresses"},
				Verbs:     verbs,
			},
		},
	}
}

func newRoleBinding(ws *schemas.WorkspaceSpec) *rbacv1.RoleBinding {
	return &rbacv1.RoleBinding{
		TypeMeta:   typeRoleBinding,
		ObjectMeta: objectMeta(ws, formatRoleBindingName(ws)),
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      formatServiceAccountName(ws),
			Namespace: ws.Namespace,
		}},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "Role",
			Name:     formatRoleName(ws),
		},
	}
}

func newPvc(ws *schemas.WorkspaceSpec) (*corev1.PersistentVolumeClaim, error) {
	size, err := resource.ParseQuantity(ws.Storage.Size)
	if err != nil {
		return nil, fmt.Errorf("storage size %q: %w", ws.Storage.Size, err)
	}
	storageClassName := ws.Storage.StorageClassName
	volumeMode := corev1.PersistentVolumeFilesystem

	return &corev1.PersistentVolumeClaim{
		TypeMeta:   typePvc,
		ObjectMeta: objectMeta(ws, formatPvcName(ws)),
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
			StorageClassName: &storageClassName,
			VolumeMode:       &volumeMode,
		},
	}, nil
}

// newDeployment runs every container in one pod. A single replica with zero surge
// keeps the ReadWriteOnce claim mounted by one pod at a time.
func newDeployment(ws *schemas.WorkspaceSpec, containers []corev1.Container, filesConfigMaps []string, restartedAt string) *appsv1.Deployment {
	labels := workspaceLabels(ws)
	pvcName := formatPvcName(ws)

	vols := []corev1.Volume{{
		Name: pvcName,
		VolumeSource: corev1.VolumeSource{
			PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: pvcName},
		},
	}}
	for _, name := range filesConfigMaps {
		vols = append(vols, corev1.Volume{
			Name: name,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: name},
				},
			},
		})
	}

	maxSurge := intstr.FromInt32(0)
	maxUnavailable := intstr.FromInt32(1)

	return &appsv1.Deployment{
		TypeMeta:   typeDeployment,
		ObjectMeta: objectMeta(ws, FormatDeployName(ws)),
		Spec: appsv1.DeploymentSpec{
			Replicas:             int32Ptr(1),
			RevisionHistoryLimit: int32Ptr(1),
			Selector: &metav1.LabelSelector{
				MatchLabels: labels,
			},
			Strategy: appsv1.DeploymentStrategy{
				Type: appsv1.RollingUpdateDeploymentStrategyType,
				RollingUpdate: &appsv1.RollingUpdateDeployment{
					MaxSurge:       &maxSurge,
					MaxUnavailable: &maxUnavailable,
				},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      labels,
					Annotations: map[string]string{restartedAtAnnotation: restartedAt},
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: formatServiceAccountName(ws),
					NodeSelector:       ws.NodeSelector,
					Volumes:            vols,
					Containers:         containers,
				},
			},
		},
	}
}

func newConfigMap(ws *schemas.WorkspaceSpec, name string, data, annotations map[string]string) *corev1.ConfigMap {
	meta := objectMeta(ws, name)
	meta.Annotations = annotations
	return &corev1.ConfigMap{
		TypeMeta:   typeConfigMap,
		ObjectMeta: meta,
		Data:       data,
	}
}

func newSecret(ws *schemas.WorkspaceSpec, name string, values map[string]string) *corev1.Secret {
	data := make(map[string][]byte, len(values))
	for k, v := range values {
		data[k] = []byte(v)
	}
	return &corev1.Secret{
		TypeMeta:   typeSecret,
		ObjectMeta: objectMeta(ws, name),
		Type:       corev1.SecretTypeOpaque,
		Data:       data,
	}
}

func newService(ws *schemas.WorkspaceSpec, ports []corev1.ServicePort) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   typeService,
		ObjectMeta: objectMeta(ws, formatServiceName(ws)),
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: workspaceLabels(ws),
			Ports:    ports,
		},
	}
}

// newIngress routes rules to the workspace Service, one ingress rule per host.
func newIngress(ws *schemas.WorkspaceSpec, name string, rules []RouteRule) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	className := ingressClassName
	serviceName := formatServiceName(ws)

	var ingressRules []networkingv1.IngressRule
	index := map[string]int{}
	for _, r := range rules {
		path := networkingv1.HTTPIngressPath{
			Path:     r.Path,
			PathType: &pathType,
			Backend: networkingv1.IngressBackend{
				Service: &networkingv1.IngressServiceBackend{
					Name: serviceName,
					Port: networkingv1.ServiceBackendPort{Number: r.Port},
				},
			},
		}
		i, ok := index[r.Host]
		if !ok {
			i = len(ingressRules)
			index[r.Host] = i
			ingressRules = append(ingressRules, networkingv1.IngressRule{
				Host: r.Host,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{},
				},
			})
		}
		http := ingressRules[i].HTTP
		http.Paths = append(http.Paths, path)
	}

	return &networkingv1.Ingress{
		TypeMeta:   typeIngress,
		ObjectMeta: objectMeta(ws, name),
		Spec: networkingv1.IngressSpec{
			IngressClassName: &className,
			Rules:            ingressRules,
		},
	}
}

func int32Ptr(i int32) *int32 { return &i }
