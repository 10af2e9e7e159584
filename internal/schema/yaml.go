package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pathql/internal/meta"
)

type yamlSchema struct {
	Entities []meta.Descriptor `yaml:"entities"`
}

// ParseYAML decodes a YAML schema. Unknown keys are errors.
func ParseYAML(data []byte) ([]meta.Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s yamlSchema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Message: "empty schema"}
		}
		return nil, &LoadError{Field: "yaml", Message: err.Error()}
	}
	for i, d := range s.Entities {
		if d.Name == "" {
			return nil, &LoadError{Field: fmt.Sprintf("entities[%d]", i), Message: "name is required"}
		}
	}
	return s.Entities, nil
}

// MarshalYAML renders descriptors in the form ParseYAML reads.
func MarshalYAML(descs []meta.Descriptor) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(yamlSchema{Entities: descs}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
