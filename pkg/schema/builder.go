package schema

import (
	"regexp"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
)

var (
	// field names follow Avro naming so every encoder can carry them
	fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	// schema names are dotted sequences of field-style names
	schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// Builder accumulates fields for a Schema. The first invalid call is
// remembered and reported by Build, so calls can be chained.
type Builder struct {
	name    string
	version int
	fields  []Field
	byName  map[string]int
	err     error
}

// NewBuilder starts a schema with the given fully qualified name
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		byName: make(map[string]int),
	}
}

// Name replaces the schema name
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Version sets the schema version
func (b *Builder) Version(version int) *Builder {
	b.version = version
	return b
}

// Field appends a mandatory field
func (b *Builder) Field(name string, t Type) *Builder {
	return b.add(Field{Name: name, Type: t})
}

// OptionalField appends an optional field without a default
func (b *Builder) OptionalField(name string, t Type) *Builder {
	return b.add(Field{Name: name, Type: t, Optional: true})
}

// OptionalFieldWithDefault appends an optional field whose absence resolves to def
func (b *Builder) OptionalFieldWithDefault(name string, t Type, def interface{}) *Builder {
	if b.err == nil && !t.Accepts(def) {
		b.err = errors.Newf(errors.ErrorTypeConfig, "default for field %q must be %s, got %T", name, t, def).
			WithDetail("schema", b.name)
		return b
	}
	return b.add(Field{Name: name, Type: t, Optional: true, Default: def, HasDefault: true})
}

func (b *Builder) add(f Field) *Builder {
	if b.err != nil {
		return b
	}

	if !fieldNamePattern.MatchString(f.Name) {
		b.err = errors.Newf(errors.ErrorTypeConfig, "malformed field name %q", f.Name).
			WithDetail("schema", b.name)
		return b
	}
	if _, dup := b.byName[f.Name]; dup {
		b.err = errors.Newf(errors.ErrorTypeConfig, "duplicate field %q", f.Name).
			WithDetail("schema", b.name)
		return b
	}
	if !f.Type.IsValid() {
		b.err = errors.Newf(errors.ErrorTypeConfig, "field %q has unknown type %q", f.Name, f.Type).
			WithDetail("schema", b.name)
		return b
	}

	f.Index = len(b.fields)
	b.byName[f.Name] = f.Index
	b.fields = append(b.fields, f)
	return b
}

// Build freezes the accumulated fields into a Schema
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !schemaNamePattern.MatchString(b.name) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "malformed schema name %q", b.name)
	}

	fields := make([]Field, len(b.fields))
	copy(fields, b.fields)
	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.Name] = i
	}

	return &Schema{
		name:    b.name,
		version: b.version,
		fields:  fields,
		byName:  byName,
	}, nil
}

// MustBuild is like Build but panics on error. It is meant for schemas
// declared as package-level literals.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
