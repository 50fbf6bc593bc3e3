// Package yamlutil converts JSON encodings into block-style YAML while
// keeping the key order of the JSON input.
package yamlutil

import (
	"errors"

	"gopkg.in/yaml.v3"
)

// FromJSON parses JSON bytes into a YAML node tree. Flow and quoting styles
// inherited from the JSON syntax are cleared so the encoder emits block style
// and quotes scalars only where YAML requires it.
func FromJSON(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("yamlutil: empty document")
	}

	root := doc.Content[0]
	clearStyle(root)
	return root, nil
}

// Marshal encodes JSON bytes as YAML.
func Marshal(data []byte) ([]byte, error) {
	node, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
