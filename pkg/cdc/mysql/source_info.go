// Package mysql projects the MySQL binlog position of a change event into
// the source metadata record attached to that event.
//
// The position itself is maintained by a Tracker fed with binlog events. The
// StructMaker turns a frozen SourceInfo copy into a schema.Struct.
package mysql

import (
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// BinlogPosition locates a row within the binlog
type BinlogPosition struct {
	Filename string `json:"file"`
	Offset   int64  `json:"pos"`
	Row      int32  `json:"row"`
}

// SourceInfo is the stream position descriptor of a MySQL connector. It is a
// plain value; a copy is a frozen snapshot.
type SourceInfo struct {
	ServerID         int64                                   `json:"server_id"`
	Position         BinlogPosition                          `json:"position"`
	GTID             sourceinfo.Optional[string]             `json:"gtid"`
	TimestampSeconds int64                                   `json:"ts_sec"`
	Snapshot         sourceinfo.SnapshotState                `json:"snapshot"`
	ThreadID         sourceinfo.Optional[int64]              `json:"thread"`
	Table            sourceinfo.Optional[sourceinfo.TableID] `json:"table"`
	Query            sourceinfo.Optional[string]             `json:"query"`
}

// ThreadIDOf maps a raw thread id to an Optional. Negative ids mean the
// event has no originating thread. Zero is a valid id.
func ThreadIDOf(id int64) sourceinfo.Optional[int64] {
	if id < 0 {
		return sourceinfo.None[int64]()
	}
	return sourceinfo.Some(id)
}

// TableOf returns the table reference for a database and table name
func TableOf(database, table string) sourceinfo.Optional[sourceinfo.TableID] {
	return sourceinfo.Some(sourceinfo.TableID{Catalog: database, Table: table})
}
