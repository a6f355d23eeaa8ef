// Package config provides configuration for a source metadata projector.
//
// Configuration is read from a YAML file with viper. Every key can be
// overridden from the environment with the SOURCEINFO_ prefix, nested keys
// joined by underscores (SOURCEINFO_LOG_LEVEL), and values may reference
// environment variables with ${VAR_NAME}.
//
//	cfg, err := config.Load("sourceinfo.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/formats"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/logger"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// EnvPrefix prefixes environment overrides
const EnvPrefix = "SOURCEINFO"

// Config identifies a connector instance and how its records are encoded
type Config struct {
	// Connector is the connector type: mysql, postgresql or mongodb
	Connector string `mapstructure:"connector" yaml:"connector"`
	// Name is the logical server name; derived from DSN when empty
	Name string `mapstructure:"name" yaml:"name,omitempty"`
	// Version is the connector version recorded in every record
	Version string `mapstructure:"version" yaml:"version"`
	// SchemaNamePrefix qualifies the source schema name
	SchemaNamePrefix string `mapstructure:"schema_name_prefix" yaml:"schema_name_prefix"`
	// DSN is the source connection string, used to seed positions
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	// Database is the database name for connectors that need one
	Database string `mapstructure:"database" yaml:"database,omitempty"`
	// IncludeQuery records statement text in MySQL records
	IncludeQuery bool `mapstructure:"include_query" yaml:"include_query"`
	// Slot is the PostgreSQL replication slot whose xmin is recorded
	Slot string `mapstructure:"slot" yaml:"slot,omitempty"`

	Format        string `mapstructure:"format" yaml:"format"`
	Compression   string `mapstructure:"compression" yaml:"compression"`
	BatchSize     int    `mapstructure:"batch_size" yaml:"batch_size"`
	SchemaEnabled bool   `mapstructure:"schema_enabled" yaml:"schema_enabled"`

	// Strict validates every projected record against its schema
	Strict bool `mapstructure:"strict" yaml:"strict"`

	Log     logger.Config               `mapstructure:"log" yaml:"log"`
	Tracing observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// Default returns the configuration used when a key is not set
func Default() *Config {
	out := formats.DefaultConfig()
	return &Config{
		Connector:        string(cdc.ConnectorMySQL),
		Version:          "1.0.0",
		SchemaNamePrefix: sourceinfo.DefaultSchemaNamePrefix,
		Format:           string(out.Format),
		Compression:      out.Compression,
		BatchSize:        out.BatchSize,
		SchemaEnabled:    out.SchemaEnabled,
		Log:              logger.DefaultConfig(),
		Tracing:          observability.DefaultTracingConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("connector", d.Connector)
	v.SetDefault("name", d.Name)
	v.SetDefault("version", d.Version)
	v.SetDefault("schema_name_prefix", d.SchemaNamePrefix)
	v.SetDefault("dsn", d.DSN)
	v.SetDefault("database", d.Database)
	v.SetDefault("include_query", d.IncludeQuery)
	v.SetDefault("format", d.Format)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("schema_enabled", d.SchemaEnabled)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("slot", d.Slot)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
}

// Load reads configuration from path. An empty path yields defaults plus
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if expanded := os.ExpandEnv(val); expanded != val {
			v.Set(key, expanded)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path as YAML
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", path)
	}
	return nil
}

// Validate checks required fields and enumerated values
func (c *Config) Validate() error {
	if !isSupported(cdc.ConnectorType(c.Connector)) {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported connector %q", c.Connector).
			WithDetail("supported", cdc.SupportedConnectors())
	}
	if c.Name == "" && c.DSN == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required when no dsn is given")
	}
	if strings.TrimSpace(c.Version) == "" {
		return errors.New(errors.ErrorTypeConfig, "version is required")
	}
	format, err := formats.ParseFormat(c.Format)
	if err != nil {
		return err
	}
	if format == formats.Avro {
		switch c.Compression {
		case "", "null", "none", "deflate", "snappy":
		default:
			return errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", c.Compression)
		}
	}
	if c.BatchSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "batch_size cannot be negative")
	}
	return c.Tracing.Validate()
}

// FormatConfig returns the writer configuration
func (c *Config) FormatConfig() formats.Config {
	format, _ := formats.ParseFormat(c.Format)
	return formats.Config{
		Format:        format,
		Compression:   c.Compression,
		BatchSize:     c.BatchSize,
		SchemaEnabled: c.SchemaEnabled,
	}
}

func isSupported(t cdc.ConnectorType) bool {
	for _, s := range cdc.SupportedConnectors() {
		if s == t {
			return true
		}
	}
	return false
}
