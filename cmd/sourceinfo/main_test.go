package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/formats"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sourceinfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func testEnv(t *testing.T, yaml string) *environment {
	t.Helper()
	env, err := setup(&globalFlags{configFile: writeConfig(t, yaml), logLevel: "error"})
	require.NoError(t, err)
	t.Cleanup(env.close)
	return env
}

const descriptors = `
{"server_id":1,"position":{"file":"mysql-bin.000003","pos":154,"row":0},"ts_sec":1700000000}
{"server_id":1,"position":{"file":"mysql-bin.000003","pos":480,"row":2},"ts_sec":1700000001,
 "gtid":"3e11fa47-71ca-11e1-9e33-c80aa9429562:23","thread":12,
 "table":{"catalog":"inventory","table":"customers"}}
`

func TestProject_JSON(t *testing.T) {
	env := testEnv(t, "connector: mysql\nname: srv\nformat: json\nschema_enabled: false\n")

	var out bytes.Buffer
	n, err := project(context.Background(), env, strings.NewReader(descriptors), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"version":"1.0.0","connector":"mysql","name":"srv","server_id":1,"ts_ms":1700000000000,"file":"mysql-bin.000003","pos":154,"row":0}`,
		lines[0])
	assert.Contains(t, lines[1], `"gtid":"3e11fa47-71ca-11e1-9e33-c80aa9429562:23"`)
	assert.Contains(t, lines[1], `"thread":12,"db":"inventory","table":"customers"`)
	assert.NotContains(t, lines[1], `"query"`)
}

func TestProject_Avro(t *testing.T) {
	env := testEnv(t, "connector: mysql\nname: srv\nformat: avro\ncompression: deflate\n")

	var out bytes.Buffer
	n, err := project(context.Background(), env, strings.NewReader(descriptors), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	records, err := formats.ReadAvro(&out)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "srv", records[0]["name"])
	assert.Equal(t, int64(480), records[1]["pos"])
}

func TestProject_BadDescriptor(t *testing.T) {
	env := testEnv(t, "connector: mysql\nname: srv\n")

	_, err := project(context.Background(), env, strings.NewReader(`{"server_id":"one"}`), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestProject_Cancelled(t *testing.T) {
	env := testEnv(t, "connector: mysql\nname: srv\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := project(ctx, env, strings.NewReader(descriptors), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestCheck_RegistersOnce(t *testing.T) {
	env := testEnv(t, "connector: postgresql\nname: pg_main\n")
	registryFile := filepath.Join(t.TempDir(), "schemas.json")

	v, err := check(context.Background(), env, registryFile, "pg_main.source", "backward")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.FileExists(t, registryFile)

	// the same schema maps to the same version
	again, err := check(context.Background(), env, registryFile, "pg_main.source", "")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Version)
	assert.Equal(t, v.Fingerprint, again.Fingerprint)
	assert.Equal(t, schema.CompatibilityBackward, again.Compatibility)
}

func TestCheck_RejectsUnknownMode(t *testing.T) {
	env := testEnv(t, "connector: postgresql\nname: pg_main\n")
	registryFile := filepath.Join(t.TempDir(), "schemas.json")

	_, err := check(context.Background(), env, registryFile, "pg_main.source", "BOGUS")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.NoFileExists(t, registryFile)

	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"check", "--config", writeConfig(t, "connector: mysql\nname: srv\n"),
		"--registry", registryFile, "--mode", "sideways"})
	require.Error(t, root.Execute())
	assert.NoFileExists(t, registryFile)
}

func TestPositionCommand_UnsupportedConnector(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"position", "--config", writeConfig(t, "connector: mongodb\nname: rs0\n")})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestProject_Traced(t *testing.T) {
	env := testEnv(t, "connector: mysql\nname: srv\nformat: json\n")
	env.cfg.Tracing.Enabled = true
	var spans bytes.Buffer
	shutdown, err := observability.Init(env.cfg.Tracing, version, &spans)
	require.NoError(t, err)

	_, err = project(context.Background(), env, strings.NewReader(descriptors), &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, spans.String(), `"Name":"sourceinfo.project"`)
	assert.Contains(t, spans.String(), `"Value":2`)
}

func TestResolveServerName(t *testing.T) {
	env := testEnv(t, "connector: mysql\ndsn: root:secret@tcp(db.internal:3306)/inventory\n")
	assert.NotEmpty(t, env.cfg.Name)
	assert.NotContains(t, env.cfg.Name, ":")

	path := filepath.Join(t.TempDir(), "pg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connector: postgresql\ndsn: postgres://db/app\n"), 0o600))
	_, err := setup(&globalFlags{configFile: path})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSchemaCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sourceinfo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connector: mongodb\nname: rs0\n"), 0o600))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"schema", "--config", path, "--avro"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"io.debezium.connector.mongodb.Source"`)
}
