package formats

import (
	"bytes"
	"io"
	"sync"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// Payload renders the present fields of a record as a JSON object in
// declared field order
type Payload struct {
	record *schema.Struct
}

// NewPayload wraps record for JSON encoding
func NewPayload(record *schema.Struct) Payload {
	return Payload{record: record}
}

// MarshalJSON implements json.Marshaler
func (p Payload) MarshalJSON() ([]byte, error) {
	buf := jsonpool.GetBuffer()
	defer jsonpool.PutBuffer(buf)

	buf.WriteByte('{')
	first := true
	var err error
	p.record.Range(func(f schema.Field, v interface{}) bool {
		var key, value []byte
		if key, err = jsonpool.Marshal(f.Name); err != nil {
			return false
		}
		if value, err = jsonpool.Marshal(v); err != nil {
			return false
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')

	return bytes.Clone(buf.Bytes()), nil
}

type envelope struct {
	Schema  *schema.Schema `json:"schema"`
	Payload Payload        `json:"payload"`
}

// jsonWriter writes one JSON document per line
type jsonWriter struct {
	w              io.Writer
	schema         *schema.Schema
	cfg            Config
	recordsWritten int64
	mu             sync.Mutex
}

func newJSONWriter(w io.Writer, s *schema.Schema, cfg Config) *jsonWriter {
	return &jsonWriter{w: w, schema: s, cfg: cfg}
}

func (jw *jsonWriter) Write(record *schema.Struct) error {
	err := jw.write(record)
	if jw.cfg.Collector != nil {
		jw.cfg.Collector.RecordEncoded(string(JSON), err)
	}
	return err
}

func (jw *jsonWriter) write(record *schema.Struct) error {
	if err := checkSchema(jw.schema, record); err != nil {
		return err
	}

	var doc interface{} = NewPayload(record)
	if jw.cfg.SchemaEnabled {
		doc = envelope{Schema: jw.schema, Payload: NewPayload(record)}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jsonpool.WriteLine(jw.w, doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write JSON record").
			WithDetail("schema", jw.schema.Name())
	}
	jw.recordsWritten++
	return nil
}

func (jw *jsonWriter) Flush() error { return nil }

func (jw *jsonWriter) Close() error { return nil }

func (jw *jsonWriter) Format() Format { return JSON }

func (jw *jsonWriter) RecordsWritten() int64 {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.recordsWritten
}
