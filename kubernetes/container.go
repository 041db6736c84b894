package kubernetes

import (
	"encoding/json"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/ez-pie/ez-workspace/schemas"
)

// FilesAnnotation records {file key: mount path} on a files ConfigMap.
const FilesAnnotation = "ez-pie.ai/files"

// AssembledContainer is a container plus the objects it references. Nil objects
// were not needed and must not be referenced.
type AssembledContainer struct {
	Container corev1.Container
	ConfigMap *corev1.ConfigMap
	Files     *corev1.ConfigMap
	Secret    *corev1.Secret
}

// Objects returns the derived objects in apply order: config, files, secret.
func (a *AssembledContainer) Objects() []Object {
	var objs []Object
	if a.ConfigMap != nil {
		objs = append(objs, a.ConfigMap)
	}
	if a.Files != nil {
		objs = append(objs, a.Files)
	}
	if a.Secret != nil {
		objs = append(objs, a.Secret)
	}
	return objs
}

// Assembler turns specialized components into containers of one workspace.
type Assembler struct {
	workspace *schemas.WorkspaceSpec
	pvcName   string
}

func NewAssembler(ws *schemas.WorkspaceSpec) *Assembler {
	return &Assembler{workspace: ws, pvcName: formatPvcName(ws)}
}

// Assemble builds the container for c.
func (a *Assembler) Assemble(c schemas.ComponentSpec) (*AssembledContainer, error) {
	ws := a.workspace
	out := &AssembledContainer{}

	if len(c.Env) > 0 {
		out.ConfigMap = newConfigMap(ws, componentName(ws, &c, "config"), copyMap(c.Env), nil)
	}
	if len(c.Files) > 0 {
		data := make(map[string]string, len(c.Files))
		paths := make(map[string]string, len(c.Files))
		for key, f := range c.Files {
			data[key] = f.Content
			paths[key] = f.MountPath
		}
		encoded, err := json.Marshal(paths)
		if err != nil {
			return nil, fmt.Errorf("encode file paths of %s: %w", c.Name, err)
		}
		out.Files = newConfigMap(ws, componentName(ws, &c, "files"), data, map[string]string{
			FilesAnnotation: string(encoded),
		})
	}
	if len(c.Secrets) > 0 {
		out.Secret = newSecret(ws, componentName(ws, &c, "secret"), c.Secrets)
	}

	resources, err := resourceRequirements(c.Resources)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", c.Name, err)
	}
	mounts, err := a.volumeMounts(c, out.Files)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", c.Name, err)
	}

	out.Container = corev1.Container{
		Name:         componentName(ws, &c),
		Image:        c.ImageRef(),
		Command:      c.Command,
		Args:         c.Args,
		Ports:        containerPorts(c.Ports),
		EnvFrom:      envFrom(out.ConfigMap, out.Secret),
		VolumeMounts: mounts,
		Resources:    resources,
	}
	return out, nil
}

func containerPorts(ports []schemas.PortSpec) []corev1.ContainerPort {
	if len(ports) == 0 {
		return nil
	}
	out := make([]corev1.ContainerPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, corev1.ContainerPort{
			Name:          p.Name,
			ContainerPort: p.Number,
			Protocol:      protocolOf(p),
		})
	}
	return out
}

func envFrom(configMap *corev1.ConfigMap, secret *corev1.Secret) []corev1.EnvFromSource {
	var sources []corev1.EnvFromSource
	if configMap != nil {
		sources = append(sources, corev1.EnvFromSource{
			ConfigMapRef: &corev1.ConfigMapEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: configMap.Name},
			},
		})
	}
	if secret != nil {
		sources = append(sources, corev1.EnvFromSource{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: secret.Name},
			},
		})
	}
	return sources
}

// volumeMounts mounts declared volumes as sub paths of the workspace claim and one
// entry per file of the files ConfigMap, read back from its annotation.
func (a *Assembler) volumeMounts(c schemas.ComponentSpec, files *corev1.ConfigMap) ([]corev1.VolumeMount, error) {
	var mounts []corev1.VolumeMount
	for _, v := range c.Volumes {
		mounts = append(mounts, corev1.VolumeMount{
			Name:      a.pvcName,
			MountPath: v.MountPath,
			SubPath:   v.Name,
		})
	}
	if files == nil {
		return mounts, nil
	}

	var paths map[string]string
	if err := json.Unmarshal([]byte(files.Annotations[FilesAnnotation]), &paths); err != nil {
		return nil, fmt.Errorf("decode %s annotation of %s: %w", FilesAnnotation, files.Name, err)
	}
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		mounts = append(mounts, corev1.VolumeMount{
			Name:      files.Name,
			MountPath: paths[k],
			SubPath:   k,
			ReadOnly:  true,
		})
	}
	return mounts, nil
}

func resourceRequirements(spec *schemas.ResourceSpec) (corev1.ResourceRequirements, error) {
	var req corev1.ResourceRequirements
	if spec == nil {
		return req, nil
	}
	set := func(list *corev1.ResourceList, name corev1.ResourceName, value string) error {
		if value == "" {
			return nil
		}
		q, err := resource.ParseQuantity(value)
		if err != nil {
			return fmt.Errorf("%s %q: %w", name, value, err)
		}
		if *list == nil {
			*list = corev1.ResourceList{}
		}
		(*list)[name] = q
		return nil
	}
	for _, s := range []struct {
		list  *corev1.ResourceList
		name  corev1.ResourceName
		value string
	}{
		{&req.Requests, corev1.ResourceCPU, spec.CpuRequest},
		{&req.Limits, corev1.ResourceCPU, spec.CpuLimit},
		{&req.Requests, corev1.ResourceMemory, spec.MemRequest},
		{&req.Limits, corev1.ResourceMemory, spec.MemLimit},
	} {
		if err := set(s.list, s.name, s.value); err != nil {
			return req, err
		}
	}
	return req, nil
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func objectMeta(ws *schemas.WorkspaceSpec, name string) metav1.ObjectMeta {
	return metav1.ObjectMeta{
		Name:      name,
		Namespace: ws.Namespace,
		Labels:    workspaceLabels(ws),
	}
}
