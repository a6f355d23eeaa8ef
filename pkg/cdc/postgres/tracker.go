package postgres

import (
	"sync"

	"github.com/jackc/pglogrepl"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// Tracker maintains the replication position of a connector from pgoutput
// logical replication messages.
type Tracker struct {
	mu        sync.RWMutex
	info      SourceInfo
	relations map[uint32]sourceinfo.TableID
	logger    *zap.Logger
}

// NewTracker returns a tracker for the given database
func NewTracker(database string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		info:      SourceInfo{Database: database},
		relations: make(map[uint32]sourceinfo.TableID),
		logger:    logger.With(zap.String("component", "postgres_tracker"), zap.String("database", database)),
	}
}

// Snapshot returns a copy of the current position
func (t *Tracker) Snapshot() SourceInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

// ApplyXLogData decodes the WAL payload and applies it at its start LSN.
// Readers never observe the new LSN without the message applied.
func (t *Tracker) ApplyXLogData(xld pglogrepl.XLogData) error {
	msg, err := pglogrepl.Parse(xld.WALData)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to parse logical replication message").
			WithDetail("wal_start", xld.WALStart.String())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.info.LSN = sourceinfo.Some(xld.WALStart)
	t.apply(msg)
	return nil
}

// Apply advances the position with a decoded logical replication message
func (t *Tracker) Apply(msg pglogrepl.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply(msg)
}

func (t *Tracker) apply(msg pglogrepl.Message) {
	switch m := msg.(type) {
	case *pglogrepl.BeginMessage:
		t.info.TxID = sourceinfo.Some(int64(m.Xid))
		t.info.CommitTime = m.CommitTime
		t.info.LSN = sourceinfo.Some(m.FinalLSN)

	case *pglogrepl.RelationMessage:
		t.relations[m.RelationID] = sourceinfo.TableID{Schema: m.Namespace, Table: m.RelationName}

	case *pglogrepl.InsertMessage:
		t.attribute(m.RelationID)
	case *pglogrepl.UpdateMessage:
		t.attribute(m.RelationID)
	case *pglogrepl.DeleteMessage:
		t.attribute(m.RelationID)

	case *pglogrepl.CommitMessage:
		t.info.CommitTime = m.CommitTime
		t.info.LSN = sourceinfo.Some(m.CommitLSN)
		t.info.TxID = sourceinfo.None[int64]()
		t.info.Table = sourceinfo.None[sourceinfo.TableID]()
	}
}

func (t *Tracker) attribute(relationID uint32) {
	table, ok := t.relations[relationID]
	if !ok {
		t.logger.Warn("change for unknown relation", zap.Uint32("relation_id", relationID))
		t.info.Table = sourceinfo.None[sourceinfo.TableID]()
		return
	}
	t.info.Table = sourceinfo.Some(table)
}

// SetStartPosition seeds the tracker with a position read from the server
func (t *Tracker) SetStartPosition(pos *ServerPosition) {
	xmin := pos.Horizon()

	t.mu.Lock()
	t.info.LSN = sourceinfo.Some(pos.LSN)
	t.info.Xmin = xmin
	t.mu.Unlock()

	t.logger.Info("tracker seeded",
		zap.Stringer("lsn", pos.LSN),
		zap.Bool("xmin", xmin.IsPresent()))
}

// StartSnapshot marks subsequent events as snapshot reads
func (t *Tracker) StartSnapshot() { t.setSnapshot(sourceinfo.SnapshotInProgress) }

// MarkLastSnapshotRecord flags the next projected event as the snapshot's last
func (t *Tracker) MarkLastSnapshotRecord() { t.setSnapshot(sourceinfo.SnapshotLast) }

// CompleteSnapshot ends the snapshot phase
func (t *Tracker) CompleteSnapshot() { t.setSnapshot(sourceinfo.SnapshotCompleted) }

func (t *Tracker) setSnapshot(state sourceinfo.SnapshotState) {
	t.mu.Lock()
	t.info.Snapshot = state
	t.mu.Unlock()
	t.logger.Debug("snapshot state changed", zap.Stringer("state", state))
}
