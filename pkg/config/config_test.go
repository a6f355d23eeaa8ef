package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/formats"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sourceinfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
connector: postgresql
name: pg_main
version: 2.1.0
format: avro
compression: deflate
strict: true
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgresql", cfg.Connector)
	assert.Equal(t, "pg_main", cfg.Name)
	assert.Equal(t, "2.1.0", cfg.Version)
	assert.Equal(t, "avro", cfg.Format)
	assert.Equal(t, "deflate", cfg.Compression)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "debug", cfg.Log.Level)
	// defaults fill the rest
	assert.Equal(t, "io.debezium.connector", cfg.SchemaNamePrefix)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.True(t, cfg.SchemaEnabled)
	assert.Equal(t, "json", cfg.Log.Encoding)
}

func TestLoad_EnvOverridesAndExpansion(t *testing.T) {
	t.Setenv("SOURCEINFO_VERSION", "9.9.9")
	t.Setenv("SOURCEINFO_LOG_LEVEL", "warn")
	t.Setenv("MYSQL_HOST", "db.internal")

	path := writeFile(t, `
connector: mysql
dsn: root@tcp(${MYSQL_HOST}:3306)/inventory
version: 1.0.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", cfg.Version)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "root@tcp(db.internal:3306)/inventory", cfg.DSN)
}

func TestLoad_Tracing(t *testing.T) {
	t.Setenv("SOURCEINFO_TRACING_SAMPLING_RATE", "0.25")

	cfg, err := Load(writeFile(t, `
connector: postgresql
name: pg_main
slot: sourceinfo_slot
tracing:
  enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "sourceinfo_slot", cfg.Slot)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
	assert.Equal(t, "sourceinfo", cfg.Tracing.ServiceName)
	assert.InDelta(t, 0.25, cfg.Tracing.SamplingRate, 1e-9)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("SOURCEINFO_NAME", "from_env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Connector)
	assert.Equal(t, "from_env", cfg.Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Load(writeFile(t, "connector: oracle\nname: x\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Name = "srv"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no name or dsn", func(c *Config) { c.Name = "" }},
		{"blank version", func(c *Config) { c.Version = " " }},
		{"unknown format", func(c *Config) { c.Format = "csv" }},
		{"unknown compression", func(c *Config) {
			c.Format = "avro"
			c.Compression = "zstd"
		}},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
		{"unknown trace exporter", func(c *Config) { c.Tracing.Exporter = "zipkin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}

	cfg := valid()
	cfg.Name = ""
	cfg.DSN = "root@tcp(db:3306)/inventory"
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	cfg := Default()
	cfg.Connector = "mongodb"
	cfg.Name = "rs0"
	cfg.Format = "avro"
	cfg.Compression = "null"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFormatConfig(t *testing.T) {
	cfg := Default()
	cfg.Format = "AVRO"
	cfg.Compression = "deflate"

	out := cfg.FormatConfig()
	assert.Equal(t, formats.Avro, out.Format)
	assert.Equal(t, "deflate", out.Compression)
	assert.Equal(t, 100, out.BatchSize)
}
