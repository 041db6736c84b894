package kubernetes

import (
	"bytes"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

const documentSeparator = "---\n"

// Render writes every object of the graph as a YAML document, in graph order.
func Render(w io.Writer, graph *ResourceGraph) error {
	var buf bytes.Buffer
	for i, obj := range graph.Objects {
		doc, err := yaml.Marshal(obj)
		if err != nil {
			return fmt.Errorf("render %s %s: %w", obj.GetObjectKind().GroupVersionKind().Kind, obj.GetName(), err)
		}
		if i > 0 {
			buf.WriteString(documentSeparator)
		}
		buf.Write(doc)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
