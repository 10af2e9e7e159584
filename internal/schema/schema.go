// Package schema loads entity descriptors from CUE or YAML schema files.
//
// Both formats describe the same thing: a set of entity types, each with a
// table, an identifier and ordered fields. CUE schemas look like
//
//	entity: Pessoa: {
//		table: "pessoa"
//		fields: {
//			id:        "int"
//			nome:      "string"
//			profissao: {type: "Profissao", kind: "to_one"}
//		}
//	}
//
// A field given as a plain string is a scalar of that type. YAML schemas
// list the same descriptors under an "entities" key, in meta.Descriptor's
// yaml form.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/pathql/internal/meta"
)

// LoadError is a schema error with its source position when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads descriptors from path. A directory is loaded as one CUE
// package; files are dispatched on their extension.
func Load(path string) ([]meta.Descriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("schema not found: %v", err)}
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("read schema: %v", err)}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return ParseCUE(filepath.Base(path), data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return nil, &LoadError{Message: fmt.Sprintf("unsupported schema file %q: want .cue, .yaml or .yml", path)}
	}
}

// Registry loads path and registers every descriptor in a new registry.
func Registry(path string) (*meta.Registry, error) {
	descs, err := Load(path)
	if err != nil {
		return nil, err
	}
	return Build(descs)
}

// Build registers descs in a new registry.
func Build(descs []meta.Descriptor) (*meta.Registry, error) {
	if len(descs) == 0 {
		return nil, &LoadError{Message: "schema declares no entities"}
	}
	r := meta.NewRegistry()
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return nil, &LoadError{Field: "entity." + d.Name, Message: err.Error()}
		}
	}
	return r, nil
}
