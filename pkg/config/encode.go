package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Encode renders a document in one of the data formats. CUE and Starlark
// manifests are authored by hand and cannot be encoded.
func Encode(format Format, doc *Document) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json: %w", err)
		}
		return append(data, '\n'), nil
	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode toml: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("format %s cannot be encoded", format)
	}
}
