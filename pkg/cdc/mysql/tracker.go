package mysql

import (
	"strconv"
	"strings"
	"sync"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// Tracker maintains the live binlog position of a connector. Binlog events
// are applied as they are read; Snapshot hands out frozen copies for
// projection.
type Tracker struct {
	mu           sync.RWMutex
	info         SourceInfo
	includeQuery bool
	logger       *zap.Logger
}

// NewTracker returns a tracker at an empty position. Query text is only
// recorded when includeQuery is set.
func NewTracker(logger *zap.Logger, includeQuery bool) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		includeQuery: includeQuery,
		logger:       logger.With(zap.String("component", "mysql_tracker")),
	}
}

// Snapshot returns a copy of the current position
func (t *Tracker) Snapshot() SourceInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

// BinlogPosition returns the current position in go-mysql form, suitable for
// restarting a binlog syncer.
func (t *Tracker) BinlogPosition() gomysql.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return gomysql.Position{
		Name: t.info.Position.Filename,
		Pos:  uint32(t.info.Position.Offset),
	}
}

// SetStartPosition positions the tracker before streaming begins
func (t *Tracker) SetStartPosition(serverID int64, pos gomysql.Position) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info.ServerID = serverID
	t.info.Position = BinlogPosition{Filename: pos.Name, Offset: int64(pos.Pos)}
}

// SetRow records the index of the row being emitted within the current event
func (t *Tracker) SetRow(row int32) {
	t.mu.Lock()
	t.info.Position.Row = row
	t.mu.Unlock()
}

// StartSnapshot marks subsequent events as snapshot reads
func (t *Tracker) StartSnapshot() {
	t.setSnapshot(sourceinfo.SnapshotInProgress)
}

// MarkLastSnapshotRecord flags the next projected event as the snapshot's last
func (t *Tracker) MarkLastSnapshotRecord() {
	t.setSnapshot(sourceinfo.SnapshotLast)
}

// CompleteSnapshot ends the snapshot phase
func (t *Tracker) CompleteSnapshot() {
	t.setSnapshot(sourceinfo.SnapshotCompleted)
}

func (t *Tracker) setSnapshot(state sourceinfo.SnapshotState) {
	t.mu.Lock()
	prev := t.info.Snapshot
	t.info.Snapshot = state
	t.mu.Unlock()

	t.logger.Debug("snapshot state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", state))
}

// Apply advances the position with a binlog event read from the server
func (t *Tracker) Apply(ev *replication.BinlogEvent) {
	if ev == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if h := ev.Header; h != nil {
		t.info.ServerID = int64(h.ServerID)
		if h.Timestamp > 0 {
			t.info.TimestampSeconds = int64(h.Timestamp)
		}
		// LogPos is the end of the event; the record points at its start
		if h.LogPos >= h.EventSize && h.LogPos > 0 {
			t.info.Position.Offset = int64(h.LogPos - h.EventSize)
		}
	}

	switch e := ev.Event.(type) {
	case *replication.RotateEvent:
		t.info.Position = BinlogPosition{
			Filename: string(e.NextLogName),
			Offset:   int64(e.Position),
		}
		t.logger.Debug("binlog rotated",
			zap.String("file", t.info.Position.Filename),
			zap.Int64("pos", t.info.Position.Offset))

	case *replication.GTIDEvent:
		sid, err := uuid.FromBytes(e.SID)
		if err != nil {
			t.logger.Warn("ignoring GTID with malformed source id", zap.Error(err))
			t.info.GTID = sourceinfo.None[string]()
			return
		}
		t.info.GTID = sourceinfo.Some(sid.String() + ":" + strconv.FormatInt(e.GNO, 10))

	case *replication.MariadbGTIDEvent:
		t.info.GTID = sourceinfo.Some(e.GTID.String())

	case *replication.QueryEvent:
		t.info.ThreadID = ThreadIDOf(int64(e.SlaveProxyID))
		t.info.Table = sourceinfo.None[sourceinfo.TableID]()
		query := string(e.Query)
		if t.includeQuery && !strings.EqualFold(strings.TrimSpace(query), "BEGIN") {
			t.info.Query = sourceinfo.Some(query)
		} else {
			t.info.Query = sourceinfo.None[string]()
		}

	case *replication.RowsQueryEvent:
		if t.includeQuery {
			t.info.Query = sourceinfo.Some(string(e.Query))
		}

	case *replication.RowsEvent:
		if e.Table != nil {
			t.info.Table = TableOf(string(e.Table.Schema), string(e.Table.Table))
		}
		t.info.Position.Row = 0

	case *replication.XIDEvent:
		t.info.ThreadID = sourceinfo.None[int64]()
		t.info.Query = sourceinfo.None[string]()
		t.info.Table = sourceinfo.None[sourceinfo.TableID]()
	}
}
