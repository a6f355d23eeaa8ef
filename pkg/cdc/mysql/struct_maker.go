package mysql

import (
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// ConnectorName is the connector type recorded in every MySQL source record
const ConnectorName = "mysql"

// Field keys of the MySQL source record
const (
	ServerIDKey       = "server_id"
	TimestampKey      = "ts_ms"
	GTIDKey           = "gtid"
	BinlogFilenameKey = "file"
	BinlogPositionKey = "pos"
	BinlogRowKey      = "row"
	SnapshotKey       = "snapshot"
	ThreadKey         = "thread"
	DatabaseKey       = "db"
	TableKey          = "table"
	QueryKey          = "query"
)

// StructMaker projects SourceInfo values into MySQL source records
type StructMaker struct {
	common *sourceinfo.Common
	schema *schema.Schema
}

var _ sourceinfo.StructMaker[SourceInfo] = (*StructMaker)(nil)

// NewStructMaker builds the MySQL source schema once. The error is a config
// error and means the connector must not start.
func NewStructMaker(common *sourceinfo.Common) (*StructMaker, error) {
	s, err := common.SchemaBuilder(common.SchemaName(ConnectorName)).
		Field(ServerIDKey, schema.TypeInt64).
		Field(TimestampKey, schema.TypeInt64).
		OptionalField(GTIDKey, schema.TypeString).
		Field(BinlogFilenameKey, schema.TypeString).
		Field(BinlogPositionKey, schema.TypeInt64).
		Field(BinlogRowKey, schema.TypeInt32).
		OptionalFieldWithDefault(SnapshotKey, schema.TypeBoolean, false).
		OptionalField(ThreadKey, schema.TypeInt64).
		OptionalField(DatabaseKey, schema.TypeString).
		OptionalField(TableKey, schema.TypeString).
		OptionalField(QueryKey, schema.TypeString).
		Build()
	if err != nil {
		return nil, err
	}

	return &StructMaker{common: common, schema: s}, nil
}

// Schema returns the cached schema; the same instance on every call
func (m *StructMaker) Schema() *schema.Schema {
	return m.schema
}

// Struct projects info into a new record. Absent values are omitted, never
// written as null.
func (m *StructMaker) Struct(info SourceInfo) *schema.Struct {
	st := m.common.Struct(m.schema)

	st.Put(ServerIDKey, info.ServerID)
	if gtid, ok := info.GTID.Get(); ok {
		st.Put(GTIDKey, gtid)
	}
	st.Put(BinlogFilenameKey, info.Position.Filename)
	st.Put(BinlogPositionKey, info.Position.Offset)
	st.Put(BinlogRowKey, info.Position.Row)
	st.Put(TimestampKey, info.TimestampSeconds*1000)

	// COMPLETED stays unmarked so streamed events are not labelled as snapshot reads
	if info.Snapshot.IsLast() {
		st.Put(SnapshotKey, true)
	}
	if thread, ok := info.ThreadID.Get(); ok && thread >= 0 {
		st.Put(ThreadKey, thread)
	}
	if table, ok := info.Table.Get(); ok {
		st.Put(DatabaseKey, table.Catalog)
		st.Put(TableKey, table.Table)
	}
	if query, ok := info.Query.Get(); ok {
		st.Put(QueryKey, query)
	}
	return st
}
