package schema

import (
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
)

// Struct is a record conforming to a Schema. A Struct is built by a single
// goroutine and must not be modified after it has been handed on.
type Struct struct {
	schema  *Schema
	values  []interface{}
	present []bool
}

// NewStruct returns an empty record for s
func NewStruct(s *Schema) *Struct {
	return &Struct{
		schema:  s,
		values:  make([]interface{}, s.Len()),
		present: make([]bool, s.Len()),
	}
}

// Schema returns the schema the record conforms to
func (st *Struct) Schema() *Schema {
	return st.schema
}

// Put writes value into the named field and returns the record for chaining.
// Writing an undeclared field, or a value whose Go type differs from the
// declared type, is a programming error and panics with a schema error.
func (st *Struct) Put(name string, value interface{}) *Struct {
	if err := st.TryPut(name, value); err != nil {
		panic(err)
	}
	return st
}

// TryPut is Put that reports violations instead of panicking
func (st *Struct) TryPut(name string, value interface{}) error {
	f, ok := st.schema.Field(name)
	if !ok {
		return errors.Newf(errors.ErrorTypeSchema, "field %q is not declared", name).
			WithDetail("schema", st.schema.Name())
	}
	if value == nil {
		return errors.Newf(errors.ErrorTypeSchema, "field %q cannot be written with nil; leave it absent", name).
			WithDetail("schema", st.schema.Name())
	}
	if !f.Type.Accepts(value) {
		return errors.Newf(errors.ErrorTypeSchema, "field %q expects %s, got %T", name, f.Type, value).
			WithDetail("schema", st.schema.Name())
	}

	st.values[f.Index] = value
	st.present[f.Index] = true
	return nil
}

// Get returns the value of the named field and whether it was written
func (st *Struct) Get(name string) (interface{}, bool) {
	f, ok := st.schema.Field(name)
	if !ok || !st.present[f.Index] {
		return nil, false
	}
	return st.values[f.Index], true
}

// Has reports whether the named field was written
func (st *Struct) Has(name string) bool {
	_, ok := st.Get(name)
	return ok
}

// GetOrDefault returns the written value, falling back to the schema default.
// The second result is false when neither exists.
func (st *Struct) GetOrDefault(name string) (interface{}, bool) {
	if v, ok := st.Get(name); ok {
		return v, true
	}
	f, ok := st.schema.Field(name)
	if !ok || !f.HasDefault {
		return nil, false
	}
	return f.Default, true
}

// Len returns the number of written fields
func (st *Struct) Len() int {
	n := 0
	for _, p := range st.present {
		if p {
			n++
		}
	}
	return n
}

// Range calls fn for every written field in declared order until fn returns false
func (st *Struct) Range(fn func(f Field, value interface{}) bool) {
	for i, f := range st.schema.fields {
		if !st.present[i] {
			continue
		}
		if !fn(f, st.values[i]) {
			return
		}
	}
}

// Map returns the written fields keyed by name
func (st *Struct) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(st.values))
	st.Range(func(f Field, v interface{}) bool {
		out[f.Name] = v
		return true
	})
	return out
}

// Validate reports the first mandatory field that was never written
func (st *Struct) Validate() error {
	for i, f := range st.schema.fields {
		if !f.Optional && !st.present[i] {
			return errors.Newf(errors.ErrorTypeSchema, "mandatory field %q is missing", f.Name).
				WithDetail("schema", st.schema.Name())
		}
	}
	return nil
}
