package mysql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	sqldriver "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
)

var serverNameReplacer = strings.NewReplacer(":", "_", "/", "_", "(", "", ")", "")

// ServerNameFromDSN derives a logical server name from the address in a
// go-sql-driver DSN, e.g. "tcp(db:3306)/inventory" becomes "db_3306".
func ServerNameFromDSN(dsn string) (string, error) {
	cfg, err := sqldriver.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid MySQL DSN")
	}
	if cfg.Addr == "" {
		return "", errors.New(errors.ErrorTypeConfig, "MySQL DSN has no address")
	}
	return serverNameReplacer.Replace(cfg.Addr), nil
}

// ServerPosition is the server's identity and current binlog coordinates
type ServerPosition struct {
	ServerID int64
	Position gomysql.Position
	GTIDSet  string
}

// LoadServerPosition reads the server id and the current binlog coordinates,
// used to seed a Tracker before streaming starts.
func LoadServerPosition(ctx context.Context, db *sql.DB) (pos *ServerPosition, err error) {
	ctx, span := observability.StartSpan(ctx, "mysql.load_server_position")
	defer func() { observability.EndSpan(span, err) }()

	pos, err = loadServerPosition(ctx, db)
	if err == nil {
		span.SetAttributes(
			attribute.Int64("server_id", pos.ServerID),
			attribute.String("binlog_position", pos.Position.String()))
	}
	return pos, err
}

func loadServerPosition(ctx context.Context, db *sql.DB) (*ServerPosition, error) {
	var serverID int64
	if err := db.QueryRowContext(ctx, "SELECT @@server_id").Scan(&serverID); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read server id")
	}

	rows, err := db.QueryContext(ctx, "SHOW MASTER STATUS")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get master status")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to read master status columns")
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to get master status")
		}
		return nil, errors.New(errors.ErrorTypeNotFound, "binary logging is not enabled on the server")
	}

	values := make([]sql.RawBytes, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "failed to scan master status")
	}

	status := make(map[string]string, len(columns))
	for i, c := range columns {
		status[c] = string(values[i])
	}

	pos, err := parseMasterStatus(status)
	if err != nil {
		return nil, err
	}
	pos.ServerID = serverID
	return pos, nil
}

func parseMasterStatus(status map[string]string) (*ServerPosition, error) {
	file := status["File"]
	if file == "" {
		return nil, errors.New(errors.ErrorTypeData, "master status has no binlog file")
	}
	offset, err := strconv.ParseUint(status["Position"], 10, 32)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid master status position").
			WithDetail("position", status["Position"])
	}

	return &ServerPosition{
		Position: gomysql.Position{Name: file, Pos: uint32(offset)},
		GTIDSet:  strings.ReplaceAll(status["Executed_Gtid_Set"], "\n", ""),
	}, nil
}
