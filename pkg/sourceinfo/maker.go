package sourceinfo

import (
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// StructMaker projects a connector's position descriptor T into a record
// of a fixed schema. Schema must return the same instance on every call.
// Struct must be safe for concurrent use provided each call receives its
// own descriptor value.
type StructMaker[T any] interface {
	Schema() *schema.Schema
	Struct(info T) *schema.Struct
}

// Projector is the type-erased view of a StructMaker used by callers that
// only hold serialized descriptors, such as the CLI.
type Projector interface {
	Schema() *schema.Schema
	ProjectJSON(data []byte) (*schema.Struct, error)
}

type jsonProjector[T any] struct {
	maker StructMaker[T]
}

// JSONProjector adapts maker to decode descriptors from JSON before projecting
func JSONProjector[T any](maker StructMaker[T]) Projector {
	return &jsonProjector[T]{maker: maker}
}

func (p *jsonProjector[T]) Schema() *schema.Schema {
	return p.maker.Schema()
}

func (p *jsonProjector[T]) ProjectJSON(data []byte) (*schema.Struct, error) {
	var info T
	if err := jsonpool.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode position descriptor").
			WithDetail("schema", p.maker.Schema().Name())
	}
	return p.maker.Struct(info), nil
}
