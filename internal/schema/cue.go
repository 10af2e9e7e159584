package schema

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"

	"github.com/roach88/pathql/internal/meta"
)

// ParseCUE compiles one CUE source and extracts its entities.
func ParseCUE(filename string, src []byte) ([]meta.Descriptor, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Entities(v)
}

// LoadCUEDir loads the CUE package in dir and extracts its entities.
func LoadCUEDir(dir string) ([]meta.Descriptor, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	return Entities(cuecontext.New().BuildInstance(inst))
}

// Entities extracts every entity under the top-level "entity" struct.
func Entities(v cue.Value) ([]meta.Descriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entities := v.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, &LoadError{Field: "entity", Message: "no entity struct found", Pos: v.Pos()}
	}
	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []meta.Descriptor
	for iter.Next() {
		d, err := CompileEntity(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// CompileEntity parses one entity struct.
func CompileEntity(name string, v cue.Value) (meta.Descriptor, error) {
	d := meta.Descriptor{Name: name}
	if err := v.Err(); err != nil {
		return d, formatCUEError(err)
	}

	var err error
	if d.Table, err = optionalString(v, "table"); err != nil {
		return d, err
	}
	if d.Identifier, err = optionalString(v, "id"); err != nil {
		return d, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return d, &LoadError{
			Field:   "entity." + name + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return d, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return d, err
		}
		d.Fields = append(d.Fields, f)
	}
	return d, nil
}

// compileField accepts either a type string or a struct decoded onto
// meta.FieldDescriptor's json names.
func compileField(name string, v cue.Value) (meta.FieldDescriptor, error) {
	if typ, err := v.String(); err == nil {
		return meta.FieldDescriptor{Name: name, Type: typ}, nil
	}

	var f meta.FieldDescriptor
	if err := v.Decode(&f); err != nil {
		return f, &LoadError{
			Field:   "field." + name,
			Message: fmt.Sprintf("must be a type string or a field struct: %v", err),
			Pos:     v.Pos(),
		}
	}
	f.Name = name
	return f, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &LoadError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
