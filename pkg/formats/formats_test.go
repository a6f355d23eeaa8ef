package formats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder("io.debezium.connector.mysql.Source").
		Field("name", schema.TypeString).
		Field("pos", schema.TypeInt64).
		Field("row", schema.TypeInt32).
		OptionalField("gtid", schema.TypeString).
		OptionalFieldWithDefault("snapshot", schema.TypeBoolean, false).
		OptionalField("thread", schema.TypeInt64).
		OptionalField("tag", schema.TypeInt16).
		Build()
	require.NoError(t, err)
	return s
}

func record(s *schema.Schema) *schema.Struct {
	return schema.NewStruct(s).
		Put("name", "inventory").
		Put("pos", int64(154)).
		Put("row", int32(0)).
		Put("thread", int64(7))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" AVRO ")
	require.NoError(t, err)
	assert.Equal(t, Avro, f)

	_, err = ParseFormat("parquet")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestAvroSchema(t *testing.T) {
	out, err := AvroSchema(testSchema(t))
	require.NoError(t, err)

	var parsed struct {
		Name   string `json:"name"`
		Fields []struct {
			Name    string      `json:"name"`
			Type    interface{} `json:"type"`
			Default interface{} `json:"default"`
		} `json:"fields"`
	}
	require.NoError(t, jsonpool.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "io.debezium.connector.mysql.Source", parsed.Name)

	byName := map[string]interface{}{}
	defaults := map[string]interface{}{}
	for _, f := range parsed.Fields {
		byName[f.Name] = f.Type
		defaults[f.Name] = f.Default
	}
	assert.Equal(t, "long", byName["pos"])
	assert.Equal(t, "int", byName["row"])
	assert.Equal(t, []interface{}{"null", "string"}, byName["gtid"])
	assert.Equal(t, []interface{}{"boolean", "null"}, byName["snapshot"])
	assert.Equal(t, []interface{}{"null", "int"}, byName["tag"])
	assert.Equal(t, false, defaults["snapshot"])
	assert.Nil(t, defaults["gtid"])
}

func TestAvroCodec_BinaryRoundTrip(t *testing.T) {
	s := testSchema(t)
	codec, err := NewAvroCodec(s)
	require.NoError(t, err)

	st := record(s).Put("tag", int16(3))
	buf, err := codec.Binary(st)
	require.NoError(t, err)

	decoded, err := codec.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, "inventory", decoded["name"])
	assert.Equal(t, int64(154), decoded["pos"])
	assert.Equal(t, int32(0), decoded["row"])
	assert.Equal(t, map[string]interface{}{"long": int64(7)}, decoded["thread"])
	assert.Equal(t, map[string]interface{}{"int": int32(3)}, decoded["tag"])
	// absent fields resolve from their declared defaults
	assert.Nil(t, decoded["gtid"])
	assert.Equal(t, map[string]interface{}{"boolean": false}, decoded["snapshot"])
}

func TestAvroCodec_RejectsForeignRecord(t *testing.T) {
	codec, err := NewAvroCodec(testSchema(t))
	require.NoError(t, err)

	other := testSchema(t)
	_, err = codec.Binary(record(other))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))
}

func TestAvroWriter_OCF(t *testing.T) {
	for _, compression := range []string{"null", "deflate", "snappy"} {
		t.Run(compression, func(t *testing.T) {
			s := testSchema(t)
			var buf bytes.Buffer
			w, err := NewWriter(&buf, s, Config{Format: Avro, Compression: compression, BatchSize: 2})
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				require.NoError(t, w.Write(record(s)))
			}
			require.NoError(t, w.Close())
			assert.Equal(t, int64(5), w.RecordsWritten())
			assert.Equal(t, Avro, w.Format())

			records, err := ReadAvro(&buf)
			require.NoError(t, err)
			require.Len(t, records, 5)
			assert.Equal(t, int64(154), records[4]["pos"])
		})
	}
}

func TestAvroWriter_UnknownCompression(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, testSchema(t), Config{Format: Avro, Compression: "zstd"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestJSONWriter_Envelope(t *testing.T) {
	s := testSchema(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, s, Config{Format: JSON, SchemaEnabled: true})
	require.NoError(t, err)
	require.NoError(t, w.Write(record(s)))
	require.NoError(t, w.Close())

	line := strings.TrimSuffix(buf.String(), "\n")
	assert.NotContains(t, line, "\n")

	var doc struct {
		Schema  *schema.Schema         `json:"schema"`
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, jsonpool.Unmarshal([]byte(line), &doc))
	assert.Equal(t, s.String(), doc.Schema.String())
	assert.Equal(t, map[string]interface{}{
		"name":   "inventory",
		"pos":    float64(154),
		"row":    float64(0),
		"thread": float64(7),
	}, doc.Payload)
}

func TestJSONWriter_PayloadOnlyKeepsDeclaredOrder(t *testing.T) {
	s := testSchema(t)
	var buf bytes.Buffer
	w, err := NewWriter(&buf, s, Config{Format: JSON})
	require.NoError(t, err)

	require.NoError(t, w.Write(record(s)))
	require.NoError(t, w.Write(record(s).Put("gtid", "abc:1")))
	assert.Equal(t, int64(2), w.RecordsWritten())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"name":"inventory","pos":154,"row":0,"thread":7}`, lines[0])
	assert.Equal(t, `{"name":"inventory","pos":154,"row":0,"gtid":"abc:1","thread":7}`, lines[1])
}

func TestWriter_Metrics(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	s := testSchema(t)

	w, err := NewWriter(&bytes.Buffer{}, s, Config{Format: JSON, Collector: collector})
	require.NoError(t, err)
	require.NoError(t, w.Write(record(s)))
	require.Error(t, w.Write(record(testSchema(t))))

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Encoded().WithLabelValues("json", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Encoded().WithLabelValues("json", "failure")))
}

func TestNewWriter_Errors(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, nil, DefaultConfig())
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewWriter(&bytes.Buffer{}, testSchema(t), Config{Format: "xml"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
