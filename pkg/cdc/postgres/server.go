package postgres

import (
	"context"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// Querier is the subset of *pgx.Conn used to read server positions
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgx.Conn)(nil)

// ServerPosition is the current WAL position of the server and, for a named
// replication slot, the transaction horizons the slot holds back.
type ServerPosition struct {
	Database    string
	LSN         pglogrepl.LSN
	Xmin        sourceinfo.Optional[int64]
	CatalogXmin sourceinfo.Optional[int64]
}

// Horizon is the xmin recorded in source records: the slot's xmin, falling
// back to catalog_xmin, which logical slots set instead.
func (p *ServerPosition) Horizon() sourceinfo.Optional[int64] {
	if p.Xmin.IsPresent() {
		return p.Xmin
	}
	return p.CatalogXmin
}

const (
	walPositionQuery = "SELECT current_database(), pg_current_wal_lsn()::text"
	slotQuery        = "SELECT xmin::text::bigint, catalog_xmin::text::bigint FROM pg_replication_slots WHERE slot_name = $1"
)

// LoadServerPosition reads the current WAL LSN and, when slot is not empty,
// the slot's xmin horizons. Used to seed a Tracker before streaming starts.
func LoadServerPosition(ctx context.Context, q Querier, slot string) (pos *ServerPosition, err error) {
	ctx, span := observability.StartSpan(ctx, "postgres.load_server_position",
		attribute.String("slot", slot))
	defer func() { observability.EndSpan(span, err) }()

	pos = &ServerPosition{}
	var lsn string
	if err := q.QueryRow(ctx, walPositionQuery).Scan(&pos.Database, &lsn); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read current WAL position")
	}
	if pos.LSN, err = pglogrepl.ParseLSN(lsn); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "server returned an invalid LSN").
			WithDetail("lsn", lsn)
	}

	if slot == "" {
		return pos, nil
	}

	var xmin, catalogXmin *int64
	if err := q.QueryRow(ctx, slotQuery, slot).Scan(&xmin, &catalogXmin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Newf(errors.ErrorTypeNotFound, "replication slot %q does not exist", slot)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read replication slot").
			WithDetail("slot", slot)
	}
	if xmin != nil {
		pos.Xmin = sourceinfo.Some(*xmin)
	}
	if catalogXmin != nil {
		pos.CatalogXmin = sourceinfo.Some(*catalogXmin)
	}
	span.SetAttributes(attribute.String("lsn", pos.LSN.String()))
	return pos, nil
}
