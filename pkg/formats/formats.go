// Package formats encodes source metadata records for transport.
//
// Two formats are supported: Avro object container files and
// newline-delimited JSON in the Connect envelope shape
// {"schema": ..., "payload": ...}. Absent optional fields are never written
// as explicit nulls by the JSON writer; Avro readers resolve them from the
// schema defaults.
package formats

import (
	"io"
	"strings"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// Format represents a record encoding
type Format string

const (
	// JSON is newline-delimited JSON
	JSON Format = "json"
	// Avro is an Avro object container file
	Avro Format = "avro"
)

// ParseFormat parses a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, Avro:
		return f, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", name)
	}
}

// Writer encodes records of a single schema
type Writer interface {
	// Write encodes one record
	Write(record *schema.Struct) error
	// Flush writes any buffered records
	Flush() error
	// Close flushes; it does not close the underlying io.Writer
	Close() error
	// Format returns the encoding
	Format() Format
	// RecordsWritten returns the number of records accepted
	RecordsWritten() int64
}

// Config configures a Writer
type Config struct {
	Format Format
	// Compression is the Avro block codec: null, deflate or snappy
	Compression string
	// BatchSize is the number of Avro records per container block
	BatchSize int
	// SchemaEnabled wraps each JSON record in a schema/payload envelope
	SchemaEnabled bool
	// Collector counts encoder outcomes; nil disables metrics
	Collector *metrics.Collector
}

// DefaultConfig returns default writer configuration
func DefaultConfig() Config {
	return Config{
		Format:        JSON,
		Compression:   "snappy",
		BatchSize:     100,
		SchemaEnabled: true,
	}
}

// NewWriter creates a writer for records of s
func NewWriter(w io.Writer, s *schema.Schema, cfg Config) (Writer, error) {
	if s == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "schema is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	switch cfg.Format {
	case JSON:
		return newJSONWriter(w, s, cfg), nil
	case Avro:
		return newAvroWriter(w, s, cfg)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported format %q", cfg.Format)
	}
}

func checkSchema(expected *schema.Schema, record *schema.Struct) error {
	if record.Schema() != expected {
		return errors.Newf(errors.ErrorTypeSchema, "record of schema %q written to writer for %q",
			record.Schema().Name(), expected.Name())
	}
	return nil
}
