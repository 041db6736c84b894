package kubernetes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/ez-pie/ez-workspace/schemas"
)

// Object is a typed Kubernetes object of the resource graph.
type Object interface {
	metav1.Object
	runtime.Object
}

// ResourceGraph is everything composed for one workspace, in apply order.
type ResourceGraph struct {
	Objects []Object
	// PrimaryHost is where the front door is reachable.
	PrimaryHost string
}

// Options are the inputs of Compose besides the workspace itself.
type Options struct {
	// Settings defaults to DefaultSettings when zero.
	Settings Settings
	// Secrets must hold every key of GeneratedSecretKeys.
	Secrets SecretMaterial
	// Now stamps the restart annotation. Defaults to the current time.
	Now time.Time
}

// CompositionError reports why a workspace could not be composed. No objects are
// produced when it is returned.
type CompositionError struct {
	Workspace string
	Problems  []string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose workspace %s: %s", e.Workspace, strings.Join(e.Problems, "; "))
}

// Compose builds the resource graph of ws. ws must have been defaulted.
func Compose(ws *schemas.WorkspaceSpec, opts Options) (*ResourceGraph, error) {
	if err := checkComposable(ws, opts.Secrets); err != nil {
		return nil, err
	}
	s := opts.Settings
	if s == (Settings{}) {
		s = DefaultSettings()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	components, err := buildComponents(ws, s, opts.Secrets)
	if err != nil {
		return nil, err
	}

	assembler := NewAssembler(ws)
	var (
		containers []corev1.Container
		derived    []Object
		files      []string
	)
	for _, c := range components {
		assembled, err := assembler.Assemble(c)
		if err != nil {
			return nil, &CompositionError{Workspace: ws.Name, Problems: []string{err.Error()}}
		}
		containers = append(containers, assembled.Container)
		derived = append(derived, assembled.Objects()...)
		if assembled.Files != nil {
			files = append(files, assembled.Files.Name)
		}
	}

	pvc, err := newPvc(ws)
	if err != nil {
		return nil, &CompositionError{Workspace: ws.Name, Problems: []string{err.Error()}}
	}

	authRules, publicRules := PlanRoutes(components, ws.Domain, s.FrontDoorPort)
	frontDoor := components[len(components)-1]

	objects := []Object{
		newNamespace(ws),
		newServiceAccount(ws),
		newRole(ws),
		newRoleBinding(ws),
		pvc,
		newDeployment(ws, containers, files, now.UTC().Format(time.RFC3339)),
	}
	objects = append(objects, derived...)
	objects = append(objects, newService(ws, servicePorts(frontDoor, publicRules)))
	objects = append(objects, newIngress(ws, formatAuthIngressName(ws), authRules))
	if len(publicRules) > 0 {
		objects = append(objects, newIngress(ws, formatPublicIngressName(ws), publicRules))
	}

	state, err := newStateConfigMap(ws, objects)
	if err != nil {
		return nil, err
	}
	objects = append(objects, state)

	if problems := collisions(containers, objects); len(problems) > 0 {
		return nil, &CompositionError{Workspace: ws.Name, Problems: problems}
	}

	return &ResourceGraph{
		Objects:     objects,
		PrimaryHost: Host(ws.Domain, ws.FrontDoor.Subdomain),
	}, nil
}

func checkComposable(ws *schemas.WorkspaceSpec, secrets SecretMaterial) error {
	var problems []string
	if ws.Workspace == nil || ws.Workspace.Image == "" {
		problems = append(problems, "workspace component is missing")
	}
	if ws.FrontDoor.ServiceAccountKey == "" {
		problems = append(problems, "front door service account key is missing")
	}
	if missing := secrets.Missing(); len(missing) > 0 {
		problems = append(problems, "secret material is missing "+strings.Join(missing, ", "))
	}
	if len(problems) > 0 {
		return &CompositionError{Workspace: ws.Name, Problems: problems}
	}
	return nil
}

// servicePorts exposes every front door port and every public route port once.
func servicePorts(frontDoor schemas.ComponentSpec, public []RouteRule) []corev1.ServicePort {
	var ports []corev1.ServicePort
	seen := map[int32]bool{}
	add := func(name string, number int32, protocol corev1.Protocol) {
		if seen[number] {
			return
		}
		seen[number] = true
		ports = append(ports, corev1.ServicePort{
			Name:       name,
			Protocol:   protocol,
			Port:       number,
			TargetPort: intstr.FromInt32(number),
		})
	}
	for _, p := range frontDoor.Ports {
		add(p.Name, p.Number, protocolOf(p))
	}
	for _, r := range public {
		add(formatName(r.Component, strconv.Itoa(int(r.Port))), r.Port, r.Protocol)
	}
	return ports
}

// collisions reports container names and object names that are used twice. Names
// are sanitized and truncated, so distinct components can still clash.
func collisions(containers []corev1.Container, objects []Object) []string {
	var problems []string
	seen := map[string]bool{}
	for _, c := range containers {
		if seen[c.Name] {
			problems = append(problems, fmt.Sprintf("container name %q is used twice", c.Name))
		}
		seen[c.Name] = true
	}

	seen = map[string]bool{}
	for _, obj := range objects {
		key := obj.GetObjectKind().GroupVersionKind().Kind + "/" + obj.GetName()
		if seen[key] {
			problems = append(problems, fmt.Sprintf("object name %s is used twice", key))
		}
		seen[key] = true
	}
	sort.Strings(problems)
	return problems
}
