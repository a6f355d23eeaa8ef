package sourceinfo

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

type testInfo struct {
	Seq  int64            `json:"seq"`
	Note Optional[string] `json:"note"`
}

type testMaker struct {
	common *Common
	schema *schema.Schema
	skip   bool
}

func newTestMaker(t *testing.T) *testMaker {
	t.Helper()
	common, err := NewCommon(CommonConfig{Connector: "test", Version: "0.1.0", ServerName: "srv"})
	require.NoError(t, err)

	s, err := common.SchemaBuilder(common.SchemaName("test")).
		Field("seq", schema.TypeInt64).
		OptionalField("note", schema.TypeString).
		Build()
	require.NoError(t, err)
	return &testMaker{common: common, schema: s}
}

func (m *testMaker) Schema() *schema.Schema { return m.schema }

func (m *testMaker) Struct(info testInfo) *schema.Struct {
	st := m.common.Struct(m.schema)
	if !m.skip {
		st.Put("seq", info.Seq)
	}
	if note, ok := info.Note.Get(); ok {
		st.Put("note", note)
	}
	return st
}

func TestOptional(t *testing.T) {
	var zero Optional[int64]
	assert.False(t, zero.IsPresent())
	assert.Equal(t, int64(9), zero.OrElse(9))

	some := Some[int64](0)
	v, ok := some.Get()
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
	assert.False(t, None[string]().IsPresent())
}

func TestOptional_JSON(t *testing.T) {
	data, err := jsonpool.Marshal(testInfo{Seq: 1, Note: Some("hi")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":1,"note":"hi"}`, string(data))

	data, err = jsonpool.Marshal(testInfo{Seq: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"seq":1,"note":null}`, string(data))

	tests := []struct {
		name    string
		input   string
		present bool
	}{
		{"missing", `{"seq":1}`, false},
		{"null", `{"seq":1,"note":null}`, false},
		{"empty string is a value", `{"seq":1,"note":""}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var info testInfo
			require.NoError(t, jsonpool.Unmarshal([]byte(tt.input), &info))
			assert.Equal(t, tt.present, info.Note.IsPresent())
		})
	}
}

func TestSnapshotState(t *testing.T) {
	assert.Equal(t, "IN_PROGRESS", SnapshotInProgress.String())
	assert.Equal(t, "UNKNOWN", SnapshotState(42).String())
	assert.True(t, SnapshotLast.IsLast())
	assert.False(t, SnapshotCompleted.IsLast())
	assert.True(t, SnapshotInProgress.InEffect())
	assert.True(t, SnapshotLast.InEffect())
	assert.False(t, SnapshotCompleted.InEffect())

	for _, s := range []SnapshotState{SnapshotNone, SnapshotInProgress, SnapshotLast, SnapshotCompleted} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back SnapshotState
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	parsed, err := ParseSnapshotState("last")
	require.NoError(t, err)
	assert.Equal(t, SnapshotLast, parsed)

	parsed, err = ParseSnapshotState("")
	require.NoError(t, err)
	assert.Equal(t, SnapshotNone, parsed)

	_, err = ParseSnapshotState("halfway")
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestTableID_String(t *testing.T) {
	assert.Equal(t, "inventory.orders", TableID{Catalog: "inventory", Table: "orders"}.String())
	assert.Equal(t, "public.orders", TableID{Schema: "public", Table: "orders"}.String())
}

func TestNewCommon_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  CommonConfig
	}{
		{"empty connector", CommonConfig{Version: "1", ServerName: "s"}},
		{"empty server", CommonConfig{Connector: "mysql", Version: "1"}},
		{"whitespace in server", CommonConfig{Connector: "mysql", Version: "1", ServerName: "my server"}},
		{"empty version", CommonConfig{Connector: "mysql", Version: "  ", ServerName: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommon(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestCommon_SchemaAndStruct(t *testing.T) {
	m := newTestMaker(t)
	assert.Equal(t, "io.debezium.connector.test.Source", m.schema.Name())
	assert.Equal(t, []string{"version", "connector", "name", "seq", "note"}, m.schema.FieldNames())

	st := m.Struct(testInfo{Seq: 3})
	assert.Equal(t, map[string]interface{}{
		"version":   "0.1.0",
		"connector": "test",
		"name":      "srv",
		"seq":       int64(3),
	}, st.Map())

	common, err := NewCommon(CommonConfig{Connector: "c", Version: "1", ServerName: "s", SchemaNamePrefix: "com.example"})
	require.NoError(t, err)
	assert.Equal(t, "com.example.c.Source", common.SchemaName("c"))
}

func TestCommon_CollidingFieldIsConfigError(t *testing.T) {
	common, err := NewCommon(CommonConfig{Connector: "c", Version: "1", ServerName: "s"})
	require.NoError(t, err)

	_, err = common.SchemaBuilder(common.SchemaName("c")).Field(ServerNameKey, schema.TypeString).Build()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestJSONProjector(t *testing.T) {
	m := newTestMaker(t)
	p := JSONProjector[testInfo](m)
	assert.Same(t, m.schema, p.Schema())

	st, err := p.ProjectJSON([]byte(`{"seq":7,"note":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Map()["seq"])
	assert.Equal(t, "x", st.Map()["note"])

	_, err = p.ProjectJSON([]byte(`{"seq":`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestInstrument_CountsRecordsAndOmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	m := newTestMaker(t)

	wrapped := Instrument[testInfo](m, InstrumentConfig{
		Connector: "test",
		Collector: collector,
		Logger:    zap.NewNop(),
	})
	assert.Same(t, m.schema, wrapped.Schema())

	wrapped.Struct(testInfo{Seq: 1})
	wrapped.Struct(testInfo{Seq: 2, Note: Some("n")})

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Projected().WithLabelValues("test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Omitted().WithLabelValues("test", "note")))
}

func TestInstrument_StrictPanicsOnMissingMandatory(t *testing.T) {
	m := newTestMaker(t)
	m.skip = true

	lenient := Instrument[testInfo](m, InstrumentConfig{Connector: "test"})
	assert.NotPanics(t, func() { lenient.Struct(testInfo{Seq: 1}) })

	strict := Instrument[testInfo](m, InstrumentConfig{Connector: "test", Strict: true})
	assert.Panics(t, func() { strict.Struct(testInfo{Seq: 1}) })
}
