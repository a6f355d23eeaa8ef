package formats

import (
	"io"
	"sync"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// AvroCodec converts records of one schema to Avro
type AvroCodec struct {
	schema *schema.Schema
	codec  *goavro.Codec
}

// NewAvroCodec derives an Avro record schema from s
func NewAvroCodec(s *schema.Schema) (*AvroCodec, error) {
	avroSchema, err := AvroSchema(s)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeSchema, "failed to create Avro codec").
			WithDetail("schema", s.Name())
	}
	return &AvroCodec{schema: s, codec: codec}, nil
}

// Schema returns the canonical Avro schema text
func (c *AvroCodec) Schema() string {
	return c.codec.Schema()
}

// Native returns the goavro native form of record. Absent fields are left
// out so the codec fills in their defaults.
func (c *AvroCodec) Native(record *schema.Struct) (map[string]interface{}, error) {
	if err := checkSchema(c.schema, record); err != nil {
		return nil, err
	}

	native := make(map[string]interface{}, c.schema.Len())
	record.Range(func(f schema.Field, v interface{}) bool {
		v = avroValue(v)
		if f.Optional {
			v = goavro.Union(avroType(f.Type), v)
		}
		native[f.Name] = v
		return true
	})
	return native, nil
}

// Binary encodes record as a single Avro datum
func (c *AvroCodec) Binary(record *schema.Struct) ([]byte, error) {
	native, err := c.Native(record)
	if err != nil {
		return nil, err
	}
	buf, err := c.codec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode Avro record").
			WithDetail("schema", c.schema.Name())
	}
	return buf, nil
}

// Decode reads a single Avro datum back into its native form
func (c *AvroCodec) Decode(buf []byte) (map[string]interface{}, error) {
	datum, _, err := c.codec.NativeFromBinary(buf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to decode Avro record")
	}
	m, ok := datum.(map[string]interface{})
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeData, "decoded Avro datum is %T, not a record", datum)
	}
	return m, nil
}

// AvroSchema renders s as an Avro record schema. Optional fields become
// unions with null; a declared default is placed in the first branch as
// Avro requires.
func AvroSchema(s *schema.Schema) (string, error) {
	fields := make([]map[string]interface{}, 0, s.Len())
	for _, f := range s.Fields() {
		t := avroType(f.Type)
		field := map[string]interface{}{"name": f.Name, "type": t}

		switch {
		case f.Optional && f.HasDefault:
			field["type"] = []interface{}{t, "null"}
			field["default"] = avroDefault(f.Default)
		case f.Optional:
			field["type"] = []interface{}{"null", t}
			field["default"] = nil
		}
		fields = append(fields, field)
	}

	out, err := jsonpool.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   s.Name(),
		"fields": fields,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to render Avro schema")
	}
	return string(out), nil
}

func avroType(t schema.Type) string {
	switch t {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32:
		return "int"
	case schema.TypeInt64:
		return "long"
	case schema.TypeFloat32:
		return "float"
	case schema.TypeFloat64:
		return "double"
	case schema.TypeBoolean:
		return "boolean"
	case schema.TypeBytes:
		return "bytes"
	default:
		return "string"
	}
}

// avroValue widens values Avro has no type for
func avroValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int8:
		return int32(x)
	case int16:
		return int32(x)
	}
	return v
}

func avroDefault(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int8:
		return int32(x)
	case int16:
		return int32(x)
	}
	return v
}

var avroCompression = map[string]string{
	"":        goavro.CompressionSnappyLabel,
	"snappy":  goavro.CompressionSnappyLabel,
	"deflate": goavro.CompressionDeflateLabel,
	"null":    goavro.CompressionNullLabel,
	"none":    goavro.CompressionNullLabel,
}

// avroWriter writes records into an object container file
type avroWriter struct {
	codec          *AvroCodec
	ocfWriter      *goavro.OCFWriter
	cfg            Config
	buffer         []interface{}
	recordsWritten int64
	mu             sync.Mutex
}

func newAvroWriter(w io.Writer, s *schema.Schema, cfg Config) (*avroWriter, error) {
	compression, ok := avroCompression[cfg.Compression]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported Avro compression %q", cfg.Compression)
	}

	codec, err := NewAvroCodec(s)
	if err != nil {
		return nil, err
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec.codec,
		CompressionName: compression,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create Avro writer")
	}

	return &avroWriter{
		codec:     codec,
		ocfWriter: ocfWriter,
		cfg:       cfg,
		buffer:    make([]interface{}, 0, cfg.BatchSize),
	}, nil
}

func (aw *avroWriter) Write(record *schema.Struct) error {
	native, err := aw.codec.Native(record)
	if err != nil {
		aw.observe(err)
		return err
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()

	aw.buffer = append(aw.buffer, native)
	aw.recordsWritten++
	aw.observe(nil)

	if len(aw.buffer) >= aw.cfg.BatchSize {
		return aw.flushBatch()
	}
	return nil
}

func (aw *avroWriter) Flush() error {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.flushBatch()
}

// Close flushes remaining records; OCFWriter has no Close of its own
func (aw *avroWriter) Close() error {
	return aw.Flush()
}

func (aw *avroWriter) Format() Format {
	return Avro
}

func (aw *avroWriter) RecordsWritten() int64 {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return aw.recordsWritten
}

func (aw *avroWriter) flushBatch() error {
	if len(aw.buffer) == 0 {
		return nil
	}
	if err := aw.ocfWriter.Append(aw.buffer); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to write Avro block").
			WithDetail("records", len(aw.buffer))
	}
	aw.buffer = aw.buffer[:0]
	return nil
}

func (aw *avroWriter) observe(err error) {
	if aw.cfg.Collector != nil {
		aw.cfg.Collector.RecordEncoded(string(Avro), err)
	}
}

// ReadAvro decodes every record of an object container file
func ReadAvro(r io.Reader) ([]map[string]interface{}, error) {
	ocfReader, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to create Avro reader")
	}

	var records []map[string]interface{}
	for ocfReader.Scan() {
		datum, err := ocfReader.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read Avro record")
		}
		if m, ok := datum.(map[string]interface{}); ok {
			records = append(records, m)
		}
	}
	if err := ocfReader.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read Avro container")
	}
	return records, nil
}
