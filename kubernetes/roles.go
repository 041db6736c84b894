package kubernetes

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ez-pie/ez-workspace/schemas"
)

// Settings are the fixed ports of the built-in roles.
type Settings struct {
	FrontDoorPort     int32
	EditorPort        int32
	CollaborationPort int32
}

// DefaultSettings returns the ports the role images listen on.
func DefaultSettings() Settings {
	return Settings{
		FrontDoorPort:     28543,
		EditorPort:        28544,
		CollaborationPort: 28545,
	}
}

const (
	frontDoorPortName     = "gateway"
	collaborationPortName = "collaboration"

	workspaceVolumeName = "workspace"
	workspaceMountPath  = "/workspace"
)

// buildComponents specializes every component of ws, in pod order: generic
// components, collaboration server, workspace, front door.
func buildComponents(ws *schemas.WorkspaceSpec, s Settings, secrets SecretMaterial) ([]schemas.ComponentSpec, error) {
	components := make([]schemas.ComponentSpec, 0, len(ws.Components)+3)
	for _, c := range ws.Components {
		components = append(components, schemas.Specialize(c, schemas.Override{Role: schemas.RoleComponent}))
	}
	if ws.CollaborationEnabled() {
		components = append(components, collaborationComponent(ws, s, secrets))
	}

	workspace, err := workspaceComponent(ws, s)
	if err != nil {
		return nil, err
	}
	components = append(components, workspace)

	frontDoor, err := frontDoorComponent(ws, s, components, secrets)
	if err != nil {
		return nil, err
	}
	return append(components, frontDoor), nil
}

func workspaceComponent(ws *schemas.WorkspaceSpec, s Settings) (schemas.ComponentSpec, error) {
	w := ws.Workspace

	env := map[string]string{
		"WORKSPACE_SERVER_URL": "https://" + Host(ws.Domain, ws.FrontDoor.Subdomain),
	}
	if ws.CollaborationEnabled() {
		env["COLLABORATION_SERVER_URL"] = "https://" + Host(ws.Domain, ws.Collaboration.Subdomain)
	}
	if len(w.Repositories) > 0 {
		repos, err := jsonString(w.Repositories)
		if err != nil {
			return schemas.ComponentSpec{}, fmt.Errorf("encode repositories: %w", err)
		}
		env["GIT_REPOSITORIES"] = repos
	}
	if len(w.InitScripts) > 0 {
		scripts, err := jsonString(w.InitScripts)
		if err != nil {
			return schemas.ComponentSpec{}, fmt.Errorf("encode init scripts: %w", err)
		}
		env["INIT_SCRIPTS"] = scripts
	}

	var secrets map[string]string
	if w.SSHPrivateKey != "" {
		secrets = map[string]string{"SSH_PRIVATE_KEY": w.SSHPrivateKey}
	}

	auth := true
	return schemas.Specialize(w.ComponentSpec, schemas.Override{
		Role:    schemas.RoleWorkspace,
		Args:    []string{workspaceMountPath, "--hostname=0.0.0.0", "--port=" + strconv.Itoa(int(s.EditorPort))},
		Env:     env,
		Secrets: secrets,
		Volumes: []schemas.VolumeSpec{{Name: workspaceVolumeName, MountPath: workspaceMountPath}},
		Ports: []schemas.PortSpec{{
			Name:     schemas.EditorPortName,
			Number:   s.EditorPort,
			Protocol: schemas.DefaultProtocol,
			Ingress:  &schemas.IngressSpec{Subdomain: w.Subdomain, Path: schemas.DefaultIngressPath, Auth: &auth},
		}},
	}), nil
}

// frontDoorComponent builds the gateway. routed are the components it dispatches to.
func frontDoorComponent(ws *schemas.WorkspaceSpec, s Settings, routed []schemas.ComponentSpec, secrets SecretMaterial) (schemas.ComponentSpec, error) {
	fd := ws.FrontDoor

	routes, err := jsonString(RouteTable(routed, ws.Domain))
	if err != nil {
		return schemas.ComponentSpec{}, fmt.Errorf("encode routes: %w", err)
	}
	users := fd.Users
	if users == nil {
		users = []string{}
	}
	allowed, err := jsonString(users)
	if err != nil {
		return schemas.ComponentSpec{}, fmt.Errorf("encode users: %w", err)
	}

	env := map[string]string{
		"ROUTES":         routes,
		"ALLOWED_USERS":  allowed,
		"HOSTNAME":       Host(ws.Domain, fd.Subdomain),
		"TOKEN_NAME":     formatTokenName(ws),
		"WORKSPACE_NAME": ws.Name,
	}
	if ws.CollaborationEnabled() {
		env["OCT_SERVER_URL"] = "https://" + Host(ws.Domain, ws.Collaboration.Subdomain)
	}

	auth := true
	base := schemas.ComponentSpec{
		Name:      fd.Name,
		Image:     fd.Image,
		Tag:       fd.Tag,
		Env:       fd.Env,
		Secrets:   fd.Secrets,
		Resources: fd.Resources,
	}
	return schemas.Specialize(base, schemas.Override{
		Role: schemas.RoleFrontDoor,
		Env:  env,
		Secrets: map[string]string{
			"SERVICE_ACCOUNT_KEY": fd.ServiceAccountKey,
			SigningKeyName:        secrets[SigningKeyName],
			SessionKeyName:        secrets[SessionKeyName],
		},
		Ports: []schemas.PortSpec{{
			Name:     frontDoorPortName,
			Number:   s.FrontDoorPort,
			Protocol: schemas.DefaultProtocol,
			Ingress:  &schemas.IngressSpec{Subdomain: fd.Subdomain, Path: schemas.DefaultIngressPath, Auth: &auth},
		}},
	}), nil
}

func collaborationComponent(ws *schemas.WorkspaceSpec, s Settings, secrets SecretMaterial) schemas.ComponentSpec {
	c := ws.Collaboration
	port := strconv.Itoa(int(s.CollaborationPort))

	return schemas.Specialize(schemas.ComponentSpec{Name: c.Name, Image: c.Image, Tag: c.Tag}, schemas.Override{
		Role: schemas.RoleCollaboration,
		Args: []string{"npm", "run", "start", "--workspace=open-collaboration-server", "--", "--port=" + port},
		Env: map[string]string{
			"WORKSPACE_NAME": ws.Name,
			"SERVER_URL":     "https://" + Host(ws.Domain, c.Subdomain),
		},
		Secrets: map[string]string{SigningKeyName: secrets[SigningKeyName]},
		Ports: []schemas.PortSpec{{
			Name:     collaborationPortName,
			Number:   s.CollaborationPort,
			Protocol: schemas.DefaultProtocol,
			Ingress:  &schemas.IngressSpec{Subdomain: c.Subdomain, Path: schemas.DefaultIngressPath, Auth: c.Auth},
		}},
	})
}

// FormatFrontDoorSecretName is the Secret holding the preserved secret material.
func FormatFrontDoorSecretName(ws *schemas.WorkspaceSpec) string {
	fd := schemas.ComponentSpec{Name: ws.FrontDoor.Name, Role: schemas.RoleFrontDoor}
	return componentName(ws, &fd, "secret")
}

func jsonString(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
