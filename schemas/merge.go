package schemas

// Role tags a specialized component with the part it plays in the workspace pod.
type Role string

const (
	RoleComponent     Role = "component"
	RoleWorkspace     Role = "workspace"
	RoleFrontDoor     Role = "frontdoor"
	RoleCollaboration Role = "collaboration"
)

// Override is a partial ComponentSpec applied on top of a base by Specialize.
// Zero values mean "keep the base value".
type Override struct {
	Role      Role
	Name      string
	Image     string
	Tag       string
	Command   []string
	Args      []string
	Ports     []PortSpec
	Env       map[string]string
	Secrets   map[string]string
	Volumes   []VolumeSpec
	Files     map[string]FileSpec
	Resources *ResourceSpec
}

// Specialize deep merges o into base and returns a new ComponentSpec.
//
// Scalars set in o replace the base value. Command and Args are replaced as a whole
// when o sets them. Env, Secrets and Files are merged key by key with o winning.
// Ports and Volumes are concatenated, base first: declaring the same port on both
// sides yields it twice.
func Specialize(base ComponentSpec, o Override) ComponentSpec {
	out := ComponentSpec{
		Name:      pick(o.Name, base.Name),
		Image:     pick(o.Image, base.Image),
		Tag:       pick(o.Tag, base.Tag),
		Command:   copyStrings(base.Command),
		Args:      copyStrings(base.Args),
		Env:       mergeStringMaps(base.Env, o.Env),
		Secrets:   mergeStringMaps(base.Secrets, o.Secrets),
		Files:     mergeFiles(base.Files, o.Files),
		Resources: base.Resources,
		Role:      base.Role,
	}
	if o.Role != "" {
		out.Role = o.Role
	}
	if o.Command != nil {
		out.Command = copyStrings(o.Command)
	}
	if o.Args != nil {
		out.Args = copyStrings(o.Args)
	}
	if o.Resources != nil {
		out.Resources = o.Resources
	}
	if out.Resources != nil {
		r := *out.Resources
		out.Resources = &r
	}

	if n := len(base.Ports) + len(o.Ports); n > 0 {
		out.Ports = make([]PortSpec, 0, n)
		for _, p := range append(append([]PortSpec{}, base.Ports...), o.Ports...) {
			out.Ports = append(out.Ports, copyPort(p))
		}
	}
	if n := len(base.Volumes) + len(o.Volumes); n > 0 {
		out.Volumes = make([]VolumeSpec, 0, n)
		out.Volumes = append(out.Volumes, base.Volumes...)
		out.Volumes = append(out.Volumes, o.Volumes...)
	}
	return out
}

func pick(override, base string) string {
	if override != "" {
		return override
	}
	return base
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string{}, in...)
}

func copyPort(p PortSpec) PortSpec {
	if p.Ingress != nil {
		ing := *p.Ingress
		if ing.Auth != nil {
			auth := *ing.Auth
			ing.Auth = &auth
		}
		p.Ingress = &ing
	}
	return p
}

func mergeStringMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func mergeFiles(base, override map[string]FileSpec) map[string]FileSpec {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]FileSpec, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
