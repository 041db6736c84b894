package schemas

// WorkspaceSpec is the declarative workspace document.
type WorkspaceSpec struct {
	Name          string                  `json:"name" validate:"required,k8sname"`
	Namespace     string                  `json:"namespace" validate:"required,k8sname"`
	Domain        string                  `json:"domain" validate:"required,domaintemplate"`
	NodeSelector  map[string]string       `json:"nodeSelector,omitempty"`
	Storage       StorageSpec             `json:"storage"`
	Components    []ComponentSpec         `json:"components,omitempty" validate:"dive"`
	Workspace     *WorkspaceComponentSpec `json:"workspace" validate:"required"`
	FrontDoor     FrontDoorSpec           `json:"frontDoor"`
	Collaboration *CollaborationSpec      `json:"collaboration,omitempty"`
}

// ComponentSpec describes one container of the workspace pod.
type ComponentSpec struct {
	Name      string              `json:"name" validate:"required,k8sname"`
	Image     string              `json:"image" validate:"required"`
	Tag       string              `json:"tag,omitempty"`
	Command   []string            `json:"command,omitempty"`
	Args      []string            `json:"args,omitempty"`
	Ports     []PortSpec          `json:"ports,omitempty" validate:"unique=Name,dive"`
	Env       map[string]string   `json:"env,omitempty" validate:"dive,keys,envname,endkeys"`
	Secrets   map[string]string   `json:"secrets,omitempty" validate:"dive,keys,envname,endkeys"`
	Volumes   []VolumeSpec        `json:"volumes,omitempty" validate:"dive"`
	Files     map[string]FileSpec `json:"files,omitempty" validate:"dive,keys,filekey,endkeys"`
	Resources *ResourceSpec       `json:"resources,omitempty"`

	// Role is set by Specialize and never read from the document.
	Role Role `json:"-"`
}

// PortSpec is a named container port. A nil Ingress keeps the port cluster-internal.
type PortSpec struct {
	Name     string       `json:"name" validate:"required,portname"`
	Number   int32        `json:"number" validate:"min=1,max=65535"`
	Protocol string       `json:"protocol,omitempty" validate:"omitempty,oneof=TCP UDP SCTP"`
	Ingress  *IngressSpec `json:"ingress,omitempty"`
}

type IngressSpec struct {
	Subdomain string `json:"subdomain" validate:"omitempty,subdomain"`
	Path      string `json:"path,omitempty" validate:"omitempty,startswith=/"`
	Auth      *bool  `json:"auth,omitempty"`
}

// RequiresAuth reports whether the route is served behind the front door.
func (i *IngressSpec) RequiresAuth() bool {
	return i.Auth == nil || *i.Auth
}

// VolumeSpec mounts a named sub directory of the shared workspace volume.
type VolumeSpec struct {
	Name      string `json:"name" validate:"required"`
	MountPath string `json:"mountPath" validate:"required,startswith=/"`
}

// FileSpec is an inline file mounted into the container.
type FileSpec struct {
	Content   string `json:"content"`
	MountPath string `json:"mountPath" validate:"required,startswith=/"`
}

type ResourceSpec struct {
	CpuRequest string `json:"cpuRequest,omitempty" validate:"omitempty,quantity"`
	CpuLimit   string `json:"cpuLimit,omitempty" validate:"omitempty,quantity"`
	MemRequest string `json:"memRequest,omitempty" validate:"omitempty,quantity"`
	MemLimit   string `json:"memLimit,omitempty" validate:"omitempty,quantity"`
}

type StorageSpec struct {
	Size             string `json:"size,omitempty" validate:"omitempty,quantity"`
	StorageClassName string `json:"storageClassName,omitempty"`
}

// WorkspaceComponentSpec is the primary editing container. The port name
// EditorPortName is reserved for the editor itself.
type WorkspaceComponentSpec struct {
	ComponentSpec `json:",inline"`

	Subdomain     string           `json:"subdomain,omitempty" validate:"omitempty,subdomain"`
	SSHPrivateKey string           `json:"sshPrivateKey,omitempty"`
	Repositories  []RepositorySpec `json:"repositories,omitempty" validate:"dive"`
	InitScripts   []ScriptSpec     `json:"initScripts,omitempty" validate:"dive"`
}

type RepositorySpec struct {
	Url    string `json:"url" validate:"required"`
	Path   string `json:"path,omitempty"`
	Branch string `json:"branch,omitempty"`
}

type ScriptSpec struct {
	Title  string            `json:"title" validate:"required"`
	Args   map[string]string `json:"args,omitempty"`
	Script string            `json:"script" validate:"required"`
}

// FrontDoorSpec is the routing and authentication gateway of the workspace.
type FrontDoorSpec struct {
	Name              string            `json:"name,omitempty" validate:"omitempty,k8sname"`
	Image             string            `json:"image,omitempty"`
	Tag               string            `json:"tag,omitempty"`
	Subdomain         string            `json:"subdomain,omitempty" validate:"omitempty,subdomain"`
	ServiceAccountKey string            `json:"serviceAccountKey,omitempty"`
	Users             []string          `json:"users,omitempty"`
	Env               map[string]string `json:"env,omitempty" validate:"dive,keys,envname,endkeys"`
	Secrets           map[string]string `json:"secrets,omitempty" validate:"dive,keys,envname,endkeys"`
	Resources         *ResourceSpec     `json:"resources,omitempty"`
}

// CollaborationSpec enables the shared-editing server.
type CollaborationSpec struct {
	Enabled   bool   `json:"enabled"`
	Name      string `json:"name,omitempty" validate:"omitempty,k8sname"`
	Image     string `json:"image,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Subdomain string `json:"subdomain,omitempty" validate:"omitempty,subdomain"`
	Auth      *bool  `json:"auth,omitempty"`
}

// CollaborationEnabled reports whether the collaboration server is part of the workspace.
func (w *WorkspaceSpec) CollaborationEnabled() bool {
	return w.Collaboration != nil && w.Collaboration.Enabled
}

// ImageRef joins image and tag.
func (c *ComponentSpec) ImageRef() string {
	if c.Tag == "" {
		return c.Image
	}
	return c.Image + ":" + c.Tag
}
