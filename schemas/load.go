package schemas

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// LoadWorkspace reads a YAML or JSON workspace document from path.
func LoadWorkspace(path string) (*WorkspaceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace document %q: %w", path, err)
	}
	ws, err := ParseWorkspace(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ws, nil
}

// ParseWorkspace decodes, defaults and validates a workspace document.
// Unknown fields are rejected.
func ParseWorkspace(data []byte) (*WorkspaceSpec, error) {
	var ws WorkspaceSpec
	if err := yaml.UnmarshalStrict(data, &ws); err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Message: err.Error()}}}
	}
	SetDefaults(&ws)
	if err := Validate(&ws); err != nil {
		return nil, err
	}
	return &ws, nil
}
