package schemas

const (
	DefaultTag              = "latest"
	DefaultProtocol         = "TCP"
	DefaultIngressPath      = "/"
	DefaultStorageSize      = "1Gi"
	DefaultStorageClassName = "manual"

	DefaultWorkspaceName      = "workspace"
	DefaultWorkspaceImage     = "ghcr.io/ez-pie/workspace-editor"
	DefaultFrontDoorName      = "gateway"
	DefaultFrontDoorImage     = "ghcr.io/ez-pie/workspace-gateway"
	DefaultCollaborationName  = "oct-server"
	DefaultCollaborationImage = "ghcr.io/ez-pie/oct-server"
	DefaultCollaborationHost  = "oct"
)

// SetDefaults fills every optional field that has a documented default.
func SetDefaults(ws *WorkspaceSpec) {
	if ws.Storage.Size == "" {
		ws.Storage.Size = DefaultStorageSize
	}
	if ws.Storage.StorageClassName == "" {
		ws.Storage.StorageClassName = DefaultStorageClassName
	}

	for i := range ws.Components {
		setComponentDefaults(&ws.Components[i])
	}

	if ws.Workspace != nil {
		if ws.Workspace.Name == "" {
			ws.Workspace.Name = DefaultWorkspaceName
		}
		if ws.Workspace.Image == "" {
			ws.Workspace.Image = DefaultWorkspaceImage
		}
		if ws.Workspace.Subdomain == "" {
			ws.Workspace.Subdomain = ws.Name
		}
		setComponentDefaults(&ws.Workspace.ComponentSpec)
	}

	fd := &ws.FrontDoor
	if fd.Name == "" {
		fd.Name = DefaultFrontDoorName
	}
	if fd.Image == "" {
		fd.Image = DefaultFrontDoorImage
	}
	if fd.Tag == "" {
		fd.Tag = DefaultTag
	}
	if fd.Subdomain == "" {
		fd.Subdomain = ws.Name
	}

	if c := ws.Collaboration; c != nil {
		if c.Name == "" {
			c.Name = DefaultCollaborationName
		}
		if c.Image == "" {
			c.Image = DefaultCollaborationImage
		}
		if c.Tag == "" {
			c.Tag = DefaultTag
		}
		if c.Subdomain == "" {
			c.Subdomain = DefaultCollaborationHost
		}
		if c.Auth == nil {
			auth := false
			c.Auth = &auth
		}
	}
}

func setComponentDefaults(c *ComponentSpec) {
	if c.Tag == "" {
		c.Tag = DefaultTag
	}
	for i := range c.Ports {
		p := &c.Ports[i]
		if p.Protocol == "" {
			p.Protocol = DefaultProtocol
		}
		if p.Ingress != nil {
			if p.Ingress.Path == "" {
				p.Ingress.Path = DefaultIngressPath
			}
			if p.Ingress.Auth == nil {
				auth := true
				p.Ingress.Auth = &auth
			}
		}
	}
}
