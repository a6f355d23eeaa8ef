package schema

import (
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
)

// structType is the Connect-style type tag of a record schema
const structType = "struct"

type fieldJSON struct {
	Type     Type                `json:"type"`
	Optional bool                `json:"optional"`
	Default  jsonpool.RawMessage `json:"default,omitempty"`
	Field    string              `json:"field"`
}

type schemaJSON struct {
	Type     string      `json:"type"`
	Fields   []fieldJSON `json:"fields"`
	Optional bool        `json:"optional"`
	Name     string      `json:"name"`
	Version  int         `json:"version,omitempty"`
}

// MarshalJSON renders the schema in the Connect JSON converter layout
func (s *Schema) MarshalJSON() ([]byte, error) {
	out := schemaJSON{
		Type:    structType,
		Name:    s.name,
		Version: s.version,
		Fields:  make([]fieldJSON, len(s.fields)),
	}

	for i, f := range s.fields {
		fj := fieldJSON{Type: f.Type, Optional: f.Optional, Field: f.Name}
		if f.HasDefault {
			raw, err := jsonpool.Marshal(f.Default)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode field default").
					WithDetail("field", f.Name)
			}
			fj.Default = raw
		}
		out.Fields[i] = fj
	}

	return jsonpool.Marshal(out)
}

// UnmarshalJSON rebuilds a schema from its Connect JSON layout
func (s *Schema) UnmarshalJSON(data []byte) error {
	var in schemaJSON
	if err := jsonpool.Unmarshal(data, &in); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode schema")
	}
	if in.Type != structType {
		return errors.Newf(errors.ErrorTypeData, "schema type %q is not %q", in.Type, structType)
	}

	b := NewBuilder(in.Name).Version(in.Version)
	for _, f := range in.Fields {
		switch {
		case !f.Optional:
			b.Field(f.Field, f.Type)
		case len(f.Default) == 0 || string(f.Default) == "null":
			b.OptionalField(f.Field, f.Type)
		default:
			def, err := decodeDefault(f.Type, f.Default)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "failed to decode field default").
					WithDetail("field", f.Field)
			}
			b.OptionalFieldWithDefault(f.Field, f.Type, def)
		}
	}

	built, err := b.Build()
	if err != nil {
		return err
	}
	*s = *built
	return nil
}

func decodeDefault(t Type, raw []byte) (interface{}, error) {
	var (
		v   interface{}
		err error
	)
	switch t {
	case TypeInt8:
		var x int8
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeInt16:
		var x int16
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeInt32:
		var x int32
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeInt64:
		var x int64
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeFloat32:
		var x float32
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeFloat64:
		var x float64
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeBoolean:
		var x bool
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeString:
		var x string
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	case TypeBytes:
		var x []byte
		err = jsonpool.Unmarshal(raw, &x)
		v = x
	default:
		return nil, errors.Newf(errors.ErrorTypeData, "unknown type %q", t)
	}
	return v, err
}
