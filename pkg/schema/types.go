// Package schema provides the typed schema and record primitives shared by
// every source metadata variant.
//
// A Schema is an ordered, immutable list of named fields. Each field has a
// Type, an optional flag and, for optional fields, an optional default
// value. Schemas are produced by a Builder and never change afterwards, so a
// single instance may be read from any number of goroutines.
//
// A Struct is a record conforming to one Schema. Values are written with Put,
// which enforces the exact Go type declared for the field. Fields that were
// never written are absent: absence is distinct from a present zero value
// and is how optional information is encoded.
package schema

import (
	"fmt"
	"strings"
)

// Type is the logical type of a schema field
type Type string

const (
	// TypeInt8 holds int8 values
	TypeInt8 Type = "int8"
	// TypeInt16 holds int16 values
	TypeInt16 Type = "int16"
	// TypeInt32 holds int32 values
	TypeInt32 Type = "int32"
	// TypeInt64 holds int64 values
	TypeInt64 Type = "int64"
	// TypeFloat32 holds float32 values
	TypeFloat32 Type = "float32"
	// TypeFloat64 holds float64 values
	TypeFloat64 Type = "float64"
	// TypeBoolean holds bool values
	TypeBoolean Type = "boolean"
	// TypeString holds string values
	TypeString Type = "string"
	// TypeBytes holds []byte values
	TypeBytes Type = "bytes"
)

// IsValid reports whether t is a known type
func (t Type) IsValid() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64,
		TypeFloat32, TypeFloat64, TypeBoolean, TypeString, TypeBytes:
		return true
	}
	return false
}

// Accepts reports whether v has exactly the Go type that t stores
func (t Type) Accepts(v interface{}) bool {
	switch t {
	case TypeInt8:
		_, ok := v.(int8)
		return ok
	case TypeInt16:
		_, ok := v.(int16)
		return ok
	case TypeInt32:
		_, ok := v.(int32)
		return ok
	case TypeInt64:
		_, ok := v.(int64)
		return ok
	case TypeFloat32:
		_, ok := v.(float32)
		return ok
	case TypeFloat64:
		_, ok := v.(float64)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBytes:
		_, ok := v.([]byte)
		return ok
	}
	return false
}

// Field describes one named slot in a Schema
type Field struct {
	Name     string
	Index    int
	Type     Type
	Optional bool
	// Default is only meaningful when HasDefault is true
	Default    interface{}
	HasDefault bool
}

// String renders the field the way it appears in error messages
func (f Field) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte(':')
	b.WriteString(string(f.Type))
	if f.Optional {
		b.WriteByte('?')
	}
	if f.HasDefault {
		fmt.Fprintf(&b, "=%v", f.Default)
	}
	return b.String()
}

// Schema is an immutable, ordered field declaration
type Schema struct {
	name    string
	fields  []Field
	byName  map[string]int
	version int
}

// Name returns the schema's fully qualified name
func (s *Schema) Name() string {
	return s.name
}

// Version returns the schema version, zero when unversioned
func (s *Schema) Version() int {
	return s.version
}

// Len returns the number of fields
func (s *Schema) Len() int {
	return len(s.fields)
}

// Fields returns a copy of the fields in declared order
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// FieldNames returns field names in declared order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// String renders the schema as name{field,...}
func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return s.name + "{" + strings.Join(parts, ",") + "}"
}
