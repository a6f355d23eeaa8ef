// Package postgres projects the logical replication position of a
// PostgreSQL change event into its source metadata record.
package postgres

import (
	"time"

	"github.com/jackc/pglogrepl"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// ConnectorName is the connector type recorded in every PostgreSQL source record
const ConnectorName = "postgresql"

// Field keys of the PostgreSQL source record
const (
	TimestampKey          = "ts_ms"
	SnapshotKey           = "snapshot"
	DatabaseKey           = "db"
	SchemaKey             = "schema"
	TableKey              = "table"
	TxIDKey               = "txId"
	LSNKey                = "lsn"
	XminKey               = "xmin"
	LastSnapshotRecordKey = "last_snapshot_record"
)

// SourceInfo is the stream position descriptor of a PostgreSQL connector
type SourceInfo struct {
	Database   string                                  `json:"db"`
	CommitTime time.Time                               `json:"commit_time"`
	Snapshot   sourceinfo.SnapshotState                `json:"snapshot"`
	Table      sourceinfo.Optional[sourceinfo.TableID] `json:"table"`
	TxID       sourceinfo.Optional[int64]              `json:"tx_id"`
	LSN        sourceinfo.Optional[pglogrepl.LSN]      `json:"lsn"`
	Xmin       sourceinfo.Optional[int64]              `json:"xmin"`
}

// StructMaker projects SourceInfo values into PostgreSQL source records
type StructMaker struct {
	common *sourceinfo.Common
	schema *schema.Schema
}

var _ sourceinfo.StructMaker[SourceInfo] = (*StructMaker)(nil)

// NewStructMaker builds the PostgreSQL source schema once
func NewStructMaker(common *sourceinfo.Common) (*StructMaker, error) {
	s, err := common.SchemaBuilder(common.SchemaName(ConnectorName)).
		Field(TimestampKey, schema.TypeInt64).
		OptionalFieldWithDefault(SnapshotKey, schema.TypeBoolean, false).
		Field(DatabaseKey, schema.TypeString).
		OptionalField(SchemaKey, schema.TypeString).
		OptionalField(TableKey, schema.TypeString).
		OptionalField(TxIDKey, schema.TypeInt64).
		OptionalField(LSNKey, schema.TypeInt64).
		OptionalField(XminKey, schema.TypeInt64).
		OptionalFieldWithDefault(LastSnapshotRecordKey, schema.TypeBoolean, false).
		Build()
	if err != nil {
		return nil, err
	}
	return &StructMaker{common: common, schema: s}, nil
}

// Schema returns the cached schema
func (m *StructMaker) Schema() *schema.Schema {
	return m.schema
}

// Struct projects info into a new record
func (m *StructMaker) Struct(info SourceInfo) *schema.Struct {
	// positions read before any commit carry no event time
	var ts int64
	if !info.CommitTime.IsZero() {
		ts = info.CommitTime.UnixMilli()
	}
	st := m.common.Struct(m.schema).
		Put(TimestampKey, ts).
		Put(DatabaseKey, info.Database)

	if info.Snapshot.InEffect() {
		st.Put(SnapshotKey, true)
	}
	if info.Snapshot.IsLast() {
		st.Put(LastSnapshotRecordKey, true)
	}
	if table, ok := info.Table.Get(); ok {
		st.Put(SchemaKey, table.Schema)
		st.Put(TableKey, table.Table)
	}
	if txID, ok := info.TxID.Get(); ok {
		st.Put(TxIDKey, txID)
	}
	if lsn, ok := info.LSN.Get(); ok {
		st.Put(LSNKey, int64(lsn))
	}
	if xmin, ok := info.Xmin.Get(); ok {
		st.Put(XminKey, xmin)
	}
	return st
}
