package kubernetes

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/ez-pie/ez-workspace/schemas"
)

// formatName joins parts with '-' and sanitizes the result into a DNS label:
// lowercase alphanumerics and single hyphens, at most 63 characters.
func formatName(parts ...string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.Join(parts, "-")) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	name := strings.TrimRight(b.String(), "-")
	if len(name) > validation.DNS1123LabelMaxLength {
		name = strings.TrimRight(name[:validation.DNS1123LabelMaxLength], "-")
	}
	return name
}

// workspaceName names workspace level objects: "<workspace>-workspace-<suffix>".
func workspaceName(ws *schemas.WorkspaceSpec, suffix ...string) string {
	return formatName(append([]string{ws.Name, "workspace"}, suffix...)...)
}

// componentName names a component's container and its derived objects:
// "<workspace>-<role>-<component>-<suffix>".
func componentName(ws *schemas.WorkspaceSpec, c *schemas.ComponentSpec, suffix ...string) string {
	role := c.Role
	if role == "" {
		role = schemas.RoleComponent
	}
	return formatName(append([]string{ws.Name, string(role), c.Name}, suffix...)...)
}

func formatServiceAccountName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "sa") }

func formatRoleName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "role") }

func formatRoleBindingName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "rolebinding") }

func formatPvcName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "pvc") }

// FormatDeployName is the name of the single workspace Deployment.
func FormatDeployName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "deployment") }

func formatServiceName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "clusterip") }

func formatAuthIngressName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "auth-ingress") }

func formatPublicIngressName(ws *schemas.WorkspaceSpec) string {
	return workspaceName(ws, "public-ingress")
}

func formatStateName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "state") }

func formatTokenName(ws *schemas.WorkspaceSpec) string { return workspaceName(ws, "token") }
