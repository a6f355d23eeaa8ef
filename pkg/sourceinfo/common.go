package sourceinfo

import (
	"strings"
	"unicode"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// Keys of the fields every connector variant carries
const (
	VersionKey    = "version"
	ConnectorKey  = "connector"
	ServerNameKey = "name"
)

// DefaultSchemaNamePrefix keeps schema names readable by existing CDC consumers
const DefaultSchemaNamePrefix = "io.debezium.connector"

// TableID names the table an event is attributed to. Catalog carries the
// database for sources that have no schema level (MySQL); Schema carries it
// for sources that do (PostgreSQL).
type TableID struct {
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema,omitempty"`
	Table   string `json:"table"`
}

// String renders the identifier with its non-empty qualifiers
func (t TableID) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Catalog, t.Schema, t.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// CommonConfig identifies the connector instance a record comes from
type CommonConfig struct {
	// Connector is the connector type, e.g. "mysql"
	Connector string
	// Version is the connector version
	Version string
	// ServerName is the logical name of the source server
	ServerName string
	// SchemaNamePrefix defaults to DefaultSchemaNamePrefix
	SchemaNamePrefix string
}

// Common supplies the schema and record skeleton shared by all variants
type Common struct {
	connector  string
	version    string
	serverName string
	prefix     string
}

// NewCommon validates the connector identity
func NewCommon(cfg CommonConfig) (*Common, error) {
	if err := validateIdentifier("connector", cfg.Connector); err != nil {
		return nil, err
	}
	if err := validateIdentifier("server name", cfg.ServerName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Version) == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "connector version must not be empty").
			WithDetail("connector", cfg.Connector)
	}

	prefix := cfg.SchemaNamePrefix
	if prefix == "" {
		prefix = DefaultSchemaNamePrefix
	}

	return &Common{
		connector:  cfg.Connector,
		version:    cfg.Version,
		serverName: cfg.ServerName,
		prefix:     prefix,
	}, nil
}

func validateIdentifier(what, value string) error {
	if value == "" {
		return errors.Newf(errors.ErrorTypeConfig, "%s must not be empty", what)
	}
	if strings.IndexFunc(value, unicode.IsSpace) >= 0 {
		return errors.Newf(errors.ErrorTypeConfig, "%s %q must not contain whitespace", what, value)
	}
	return nil
}

// Connector returns the connector type
func (c *Common) Connector() string { return c.connector }

// Version returns the connector version
func (c *Common) Version() string { return c.version }

// ServerName returns the logical server name
func (c *Common) ServerName() string { return c.serverName }

// SchemaName returns the fully qualified name of the variant's source schema
func (c *Common) SchemaName(variant string) string {
	return c.prefix + "." + variant + ".Source"
}

// SchemaBuilder starts a builder holding the common fields
func (c *Common) SchemaBuilder(name string) *schema.Builder {
	return schema.NewBuilder(name).
		Field(VersionKey, schema.TypeString).
		Field(ConnectorKey, schema.TypeString).
		Field(ServerNameKey, schema.TypeString)
}

// Struct returns a record for s with the common fields written
func (c *Common) Struct(s *schema.Schema) *schema.Struct {
	return schema.NewStruct(s).
		Put(VersionKey, c.version).
		Put(ConnectorKey, c.connector).
		Put(ServerNameKey, c.serverName)
}
