package kubernetes

import (
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/ez-pie/ez-workspace/schemas"
)

// StateKey is the data key of the state snapshot ConfigMap.
const StateKey = "state"

// StateRecord identifies one composed object.
type StateRecord struct {
	APIVersion string        `json:"apiVersion"`
	Kind       string        `json:"kind"`
	Metadata   StateMetadata `json:"metadata"`
}

type StateMetadata struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// Snapshot lists the identity of every object, in order.
func Snapshot(objects []Object) []StateRecord {
	records := make([]StateRecord, 0, len(objects))
	for _, obj := range objects {
		apiVersion, kind := obj.GetObjectKind().GroupVersionKind().ToAPIVersionAndKind()
		records = append(records, StateRecord{
			APIVersion: apiVersion,
			Kind:       kind,
			Metadata: StateMetadata{
				Name:      obj.GetName(),
				Namespace: obj.GetNamespace(),
			},
		})
	}
	return records
}

// newStateConfigMap records every object composed before it. It is not read back.
func newStateConfigMap(ws *schemas.WorkspaceSpec, objects []Object) (*corev1.ConfigMap, error) {
	state, err := json.Marshal(Snapshot(objects))
	if err != nil {
		return nil, fmt.Errorf("encode state snapshot: %w", err)
	}
	return newConfigMap(ws, formatStateName(ws), map[string]string{StateKey: string(state)}, nil), nil
}

// State returns the JSON snapshot recorded in the graph, if any.
func (g *ResourceGraph) State() string {
	for i := len(g.Objects) - 1; i >= 0; i-- {
		if cm, ok := g.Objects[i].(*corev1.ConfigMap); ok && cm.Data[StateKey] != "" {
			return cm.Data[StateKey]
		}
	}
	return ""
}
