package kubernetes

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"sigs.k8s.io/yaml"

	"github.com/ez-pie/ez-workspace/schemas"
)

const demoDocument = `
name: demo
namespace: demo-ns
domain: "%s.example.com"
components:
  - name: api
    image: example/api
    ports:
      - name: http
        number: 8080
        ingress:
          subdomain: api
          path: /
          auth: false
workspace:
  repositories:
    - url: https://github.com/ez-pie/demo.git
frontDoor:
  serviceAccountKey: '{"type":"service_account"}'
`

var demoNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func demoWorkspace(t *testing.T) *schemas.WorkspaceSpec {
	t.Helper()
	ws, err := schemas.ParseWorkspace([]byte(demoDocument))
	require.NoError(t, err)
	return ws
}

func demoSecrets(signing string) SecretMaterial {
	return SecretMaterial{SigningKeyName: signing, SessionKeyName: "session"}
}

func composeDemo(t *testing.T, secrets SecretMaterial, now time.Time) *ResourceGraph {
	t.Helper()
	graph, err := Compose(demoWorkspace(t), Options{Secrets: secrets, Now: now})
	require.NoError(t, err)
	return graph
}

func findObject[T Object](t *testing.T, graph *ResourceGraph, name string) T {
	t.Helper()
	for _, obj := range graph.Objects {
		if o, ok := obj.(T); ok && obj.GetName() == name {
			return o
		}
	}
	var zero T
	t.Fatalf("object %s of type %T not found", name, zero)
	return zero
}

func TestComposeDemoWorkspace(t *testing.T) {
	graph := composeDemo(t, demoSecrets("signing"), demoNow)

	var kinds []string
	for _, obj := range graph.Objects {
		kinds = append(kinds, obj.GetObjectKind().GroupVersionKind().Kind+"/"+obj.GetName())
	}
	assert.Equal(t, []string{
		"Namespace/demo-ns",
		"ServiceAccount/demo-workspace-sa",
		"Role/demo-workspace-role",
		"RoleBinding/demo-workspace-rolebinding",
		"PersistentVolumeClaim/demo-workspace-pvc",
		"Deployment/demo-workspace-deployment",
		"ConfigMap/demo-workspace-workspace-config",
		"ConfigMap/demo-frontdoor-gateway-config",
		"Secret/demo-frontdoor-gateway-secret",
		"Service/demo-workspace-clusterip",
		"Ingress/demo-workspace-auth-ingress",
		"Ingress/demo-workspace-public-ingress",
		"ConfigMap/demo-workspace-state",
	}, kinds)
	assert.Equal(t, "demo.example.com", graph.PrimaryHost)

	deploy := findObject[*appsv1.Deployment](t, graph, "demo-workspace-deployment")
	require.Len(t, deploy.Spec.Template.Spec.Containers, 3)
	assert.Equal(t, "demo-component-api", deploy.Spec.Template.Spec.Containers[0].Name)
	assert.Equal(t, "demo-workspace-workspace", deploy.Spec.Template.Spec.Containers[1].Name)
	assert.Equal(t, "demo-frontdoor-gateway", deploy.Spec.Template.Spec.Containers[2].Name)
	assert.Equal(t, int32(1), *deploy.Spec.Replicas)
	assert.Equal(t, int32(1), *deploy.Spec.RevisionHistoryLimit)
	assert.Equal(t, int32(0), deploy.Spec.Strategy.RollingUpdate.MaxSurge.IntVal)
	assert.Equal(t, int32(1), deploy.Spec.Strategy.RollingUpdate.MaxUnavailable.IntVal)
	assert.Equal(t, "2024-05-01T12:00:00Z", deploy.Spec.Template.Annotations[restartedAtAnnotation])
	assert.Equal(t, "demo-workspace-sa", deploy.Spec.Template.Spec.ServiceAccountName)
	assert.Equal(t, deploy.Spec.Selector.MatchLabels, deploy.Spec.Template.Labels)

	public := findObject[*networkingv1.Ingress](t, graph, "demo-workspace-public-ingress")
	require.Len(t, public.Spec.Rules, 1)
	assert.Equal(t, "api.example.com", public.Spec.Rules[0].Host)
	require.Len(t, public.Spec.Rules[0].HTTP.Paths, 1)
	assert.Equal(t, "/", public.Spec.Rules[0].HTTP.Paths[0].Path)
	assert.Equal(t, int32(8080), public.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Port.Number)

	auth := findObject[*networkingv1.Ingress](t, graph, "demo-workspace-auth-ingress")
	require.Len(t, auth.Spec.Rules, 1)
	assert.Equal(t, "demo.example.com", auth.Spec.Rules[0].Host)
	require.Len(t, auth.Spec.Rules[0].HTTP.Paths, 1)
	assert.Equal(t, int32(28543), auth.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Port.Number)
	assert.Equal(t, "demo-workspace-clusterip", auth.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Name)

	svc := findObject[*corev1.Service](t, graph, "demo-workspace-clusterip")
	require.Len(t, svc.Spec.Ports, 2)
	assert.Equal(t, int32(28543), svc.Spec.Ports[0].Port)
	assert.Equal(t, int32(8080), svc.Spec.Ports[1].Port)
	assert.Equal(t, deploy.Spec.Template.Labels, svc.Spec.Selector)

	var pvcs int
	for _, obj := range graph.Objects {
		if _, ok := obj.(*corev1.PersistentVolumeClaim); ok {
			pvcs++
		}
	}
	assert.Equal(t, 1, pvcs)

	secret := findObject[*corev1.Secret](t, graph, FormatFrontDoorSecretName(demoWorkspace(t)))
	assert.Equal(t, "signing", string(secret.Data[SigningKeyName]))
	assert.Equal(t, "session", string(secret.Data[SessionKeyName]))
	assert.Equal(t, `{"type":"service_account"}`, string(secret.Data["SERVICE_ACCOUNT_KEY"]))
}

func TestComposeStateSnapshot(t *testing.T) {
	graph := composeDemo(t, demoSecrets("signing"), demoNow)

	state := findObject[*corev1.ConfigMap](t, graph, "demo-workspace-state")
	assert.Same(t, state, graph.Objects[len(graph.Objects)-1])

	var records []StateRecord
	require.NoError(t, yaml.Unmarshal([]byte(state.Data[StateKey]), &records))
	require.Len(t, records, len(graph.Objects)-1)
	assert.Equal(t, StateRecord{APIVersion: "v1", Kind: "Namespace", Metadata: StateMetadata{Name: "demo-ns"}}, records[0])
	assert.Equal(t, StateRecord{
		APIVersion: "apps/v1",
		Kind:       "Deployment",
		Metadata:   StateMetadata{Name: "demo-workspace-deployment", Namespace: "demo-ns"},
	}, records[5])
	for _, r := range records {
		assert.NotEqual(t, "demo-workspace-state", r.Metadata.Name)
	}
}

func TestComposeRotationOnlyChangesSecretMaterial(t *testing.T) {
	first := composeDemo(t, demoSecrets("first"), demoNow)
	second := composeDemo(t, demoSecrets("second"), demoNow.Add(time.Hour))
	require.Len(t, second.Objects, len(first.Objects))

	secretName := FormatFrontDoorSecretName(demoWorkspace(t))
	for i := range first.Objects {
		a, b := first.Objects[i], second.Objects[i]
		require.Equal(t, a.GetName(), b.GetName())

		switch a.GetName() {
		case secretName:
			assert.NotEqual(t,
				a.(*corev1.Secret).Data[SigningKeyName],
				b.(*corev1.Secret).Data[SigningKeyName])
			continue
		case "demo-workspace-deployment":
			b = b.DeepCopyObject().(Object)
			b.(*appsv1.Deployment).Spec.Template.Annotations[restartedAtAnnotation] =
				a.(*appsv1.Deployment).Spec.Template.Annotations[restartedAtAnnotation]
		}

		docA, err := yaml.Marshal(a)
		require.NoError(t, err)
		docB, err := yaml.Marshal(b)
		require.NoError(t, err)
		assert.Equal(t, string(docA), string(docB), "object %s", a.GetName())
	}
}

func TestComposeCollaborationServer(t *testing.T) {
	ws := demoWorkspace(t)
	ws.Collaboration = &schemas.CollaborationSpec{Enabled: true}
	schemas.SetDefaults(ws)

	graph, err := Compose(ws, Options{Secrets: demoSecrets("signing"), Now: demoNow})
	require.NoError(t, err)

	deploy := findObject[*appsv1.Deployment](t, graph, "demo-workspace-deployment")
	containers := deploy.Spec.Template.Spec.Containers
	require.Len(t, containers, 4)
	assert.Equal(t, "demo-collaboration-oct-server", containers[1].Name)
	assert.Equal(t, int32(28545), containers[1].Ports[0].ContainerPort)

	collab := findObject[*corev1.Secret](t, graph, "demo-collaboration-oct-server-secret")
	assert.Equal(t, "signing", string(collab.Data[SigningKeyName]))

	public := findObject[*networkingv1.Ingress](t, graph, "demo-workspace-public-ingress")
	var hosts []string
	for _, r := range public.Spec.Rules {
		hosts = append(hosts, r.Host)
	}
	assert.ElementsMatch(t, []string{"api.example.com", "oct.example.com"}, hosts)

	fdConfig := findObject[*corev1.ConfigMap](t, graph, "demo-frontdoor-gateway-config")
	assert.Equal(t, "https://oct.example.com", fdConfig.Data["OCT_SERVER_URL"])
}

func TestComposeOmitsPublicIngressWithoutPublicRoutes(t *testing.T) {
	ws := demoWorkspace(t)
	ws.Components = nil

	graph, err := Compose(ws, Options{Secrets: demoSecrets("signing"), Now: demoNow})
	require.NoError(t, err)
	for _, obj := range graph.Objects {
		assert.NotEqual(t, "demo-workspace-public-ingress", obj.GetName())
	}

	svc := findObject[*corev1.Service](t, graph, "demo-workspace-clusterip")
	require.Len(t, svc.Spec.Ports, 1)
	assert.Equal(t, "gateway", svc.Spec.Ports[0].Name)
}

func TestComposeErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(ws *schemas.WorkspaceSpec)
		secrets SecretMaterial
		problem string
	}{
		{
			name:    "missing service account key",
			mutate:  func(ws *schemas.WorkspaceSpec) { ws.FrontDoor.ServiceAccountKey = "" },
			secrets: demoSecrets("signing"),
			problem: "front door service account key is missing",
		},
		{
			name:    "missing workspace component",
			mutate:  func(ws *schemas.WorkspaceSpec) { ws.Workspace = nil },
			secrets: demoSecrets("signing"),
			problem: "workspace component is missing",
		},
		{
			name:    "missing secret material",
			mutate:  func(ws *schemas.WorkspaceSpec) {},
			secrets: SecretMaterial{SessionKeyName: "session"},
			problem: "secret material is missing JWT_PRIVATE_KEY",
		},
		{
			name: "component name collision",
			mutate: func(ws *schemas.WorkspaceSpec) {
				ws.Components = append(ws.Components, ws.Components[0])
			},
			secrets: demoSecrets("signing"),
			problem: `container name "demo-component-api" is used twice`,
		},
		{
			name: "names colliding after sanitizing",
			mutate: func(ws *schemas.WorkspaceSpec) {
				dup := ws.Components[0]
				dup.Name = "API"
				dup.Ports = nil
				dup.Env = map[string]string{"A": "1"}
				ws.Components[0].Env = map[string]string{"B": "2"}
				ws.Components = append(ws.Components, dup)
			},
			secrets: demoSecrets("signing"),
			problem: "object name ConfigMap/demo-component-api-config is used twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := demoWorkspace(t)
			tt.mutate(ws)

			graph, err := Compose(ws, Options{Secrets: tt.secrets, Now: demoNow})
			assert.Nil(t, graph)

			var compErr *CompositionError
			require.True(t, errors.As(err, &compErr), "got %v", err)
			assert.Contains(t, compErr.Problems, tt.problem)
		})
	}
}
