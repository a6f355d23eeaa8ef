package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/mysql"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/postgres"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/formats"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/logger"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

func newSchemaCommand(flags *globalFlags) *cobra.Command {
	var avro bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the source metadata schema of the configured connector",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			return printSchema(cmd.OutOrStdout(), env.projector.Schema(), avro)
		},
	}
	cmd.Flags().BoolVar(&avro, "avro", false, "Print the Avro record schema instead of the JSON converter form")
	return cmd
}

func printSchema(w io.Writer, s *schema.Schema, avro bool) error {
	if avro {
		text, err := formats.AvroSchema(s)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, text+"\n")
		return err
	}

	out, err := jsonpool.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode schema")
	}
	_, err = w.Write(append(out, '\n'))
	return err
}

func newProjectCommand(flags *globalFlags) *cobra.Command {
	var inputFile, outputFile string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project position descriptors into source metadata records",
		Long: `Read JSON position descriptors (one value after another) from a file or stdin
and write one source metadata record per descriptor in the configured format.

Example:
  sourceinfo project --config mysql.yaml --input positions.json --output records.avro`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			in := cmd.InOrStdin()
			if inputFile != "" {
				f, err := os.Open(inputFile) //nolint:gosec // G304: path supplied by operator
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeConfig, "failed to open input")
				}
				defer f.Close()
				in = f
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile) //nolint:gosec // G304: path supplied by operator
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeConfig, "failed to create output")
				}
				defer f.Close()
				out = f
			}

			ctx := env.context(cmd.Context())
			n, err := project(ctx, env, in, out)
			if err != nil {
				return err
			}

			logger.WithContext(ctx).Info("projection completed",
				zap.Int64("records", n),
				zap.Duration("duration", time.Since(env.collector.StartTime())))
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "Descriptor JSON file (default stdin)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	return cmd
}

// project streams descriptors from in to a writer over out
func project(ctx context.Context, env *environment, in io.Reader, out io.Writer) (n int64, err error) {
	wcfg := env.cfg.FormatConfig()
	wcfg.Collector = env.collector

	ctx, span := observability.StartSpan(ctx, "sourceinfo.project",
		attribute.String("connector", env.cfg.Connector),
		attribute.String("format", string(wcfg.Format)))
	defer func() {
		span.SetAttributes(attribute.Int64("records", n))
		observability.EndSpan(span, err)
	}()

	w, err := formats.NewWriter(out, env.projector.Schema(), wcfg)
	if err != nil {
		return 0, err
	}

	dec := jsonpool.NewDecoder(in)
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return w.RecordsWritten(), err
		}

		var raw jsonpool.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return w.RecordsWritten(), errors.Wrap(err, errors.ErrorTypeData, "failed to read descriptor").
				WithDetail("record", w.RecordsWritten())
		}

		record, err := env.projector.ProjectJSON(raw)
		if err != nil {
			return w.RecordsWritten(), err
		}
		if err := w.Write(record); err != nil {
			return w.RecordsWritten(), err
		}
	}

	if err := w.Close(); err != nil {
		return w.RecordsWritten(), err
	}
	return w.RecordsWritten(), nil
}

func newCheckCommand(flags *globalFlags) *cobra.Command {
	var registryFile, subject, mode string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Register the schema in a registry file and check compatibility",
		Long: `Register the connector's source schema under a subject in a JSON registry file.
The command fails when the schema is incompatible with the latest registered
version under the subject's compatibility mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			if subject == "" {
				subject = env.cfg.Name + ".source"
			}
			v, err := check(env.context(cmd.Context()), env, registryFile, subject, mode)
			if err != nil {
				return err
			}

			cmd.Printf("subject %s: version %d (fingerprint %s)\n", subject, v.Version, v.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVar(&registryFile, "registry", "schemas.json", "Registry file, created when missing")
	cmd.Flags().StringVar(&subject, "subject", "", "Registry subject (default <name>.source)")
	cmd.Flags().StringVar(&mode, "mode", "", "Compatibility mode for the subject (NONE, BACKWARD, FORWARD, FULL)")
	return cmd
}

// check registers the projector schema under subject; a non-empty mode
// replaces the subject's compatibility mode before registration.
func check(ctx context.Context, env *environment, registryFile, subject, mode string) (*schema.SchemaVersion, error) {
	var compatibility schema.CompatibilityMode
	if mode != "" {
		var err error
		if compatibility, err = schema.ParseCompatibilityMode(mode); err != nil {
			return nil, err
		}
	}

	log := logger.WithContext(ctx)
	registry := schema.NewRegistry(log)

	data, err := os.ReadFile(registryFile) //nolint:gosec // G304: path supplied by operator
	switch {
	case err == nil:
		if err := registry.Import(data); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		log.Info("creating schema registry", zap.String("path", registryFile))
	default:
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read registry")
	}

	if compatibility != "" {
		if err := registry.SetCompatibilityMode(subject, compatibility); err != nil {
			return nil, err
		}
	}
	registry.OnSchemaChange(func(subject string, old, new *schema.SchemaVersion) {
		from := 0
		if old != nil {
			from = old.Version
		}
		log.Info("schema version added",
			zap.String("subject", subject),
			zap.Int("from", from),
			zap.Int("to", new.Version))
	})

	v, err := registry.RegisterSchema(ctx, subject, env.projector.Schema())
	if err != nil {
		return nil, err
	}

	out, err := registry.Export()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(registryFile, out, 0o600); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to write registry")
	}

	history, err := registry.GetSchemaHistory(subject)
	if err != nil {
		return nil, err
	}
	log.Info("schema registered",
		zap.String("subject", subject),
		zap.Int("version", v.Version),
		zap.Int("versions", len(history)),
		zap.String("compatibility", string(v.Compatibility)))
	return v, nil
}

func newPositionCommand(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "position",
		Short: "Project the current position of the configured MySQL or PostgreSQL server",
		Long: `Connect to the configured server, read its current stream position and write
it as one source metadata record. For postgresql the xmin horizon of the
configured replication slot is included when slot is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(flags)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(env.context(cmd.Context()), timeout)
			defer cancel()

			var descriptor interface{}
			switch cdc.ConnectorType(env.cfg.Connector) {
			case cdc.ConnectorMySQL:
				descriptor, err = mysqlPosition(ctx, env)
			case cdc.ConnectorPostgreSQL:
				descriptor, err = postgresPosition(ctx, env)
			default:
				return errors.Newf(errors.ErrorTypeConfig, "position is not available for %s", env.cfg.Connector)
			}
			if err != nil {
				return err
			}

			data, err := jsonpool.Marshal(descriptor)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode position")
			}
			_, err = project(ctx, env, bytes.NewReader(data), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")
	return cmd
}

func mysqlPosition(ctx context.Context, env *environment) (mysql.SourceInfo, error) {
	db, err := sql.Open("mysql", env.cfg.DSN)
	if err != nil {
		return mysql.SourceInfo{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open MySQL connection")
	}
	defer db.Close()

	pos, err := mysql.LoadServerPosition(ctx, db)
	if err != nil {
		return mysql.SourceInfo{}, err
	}

	tracker := mysql.NewTracker(logger.WithContext(ctx), env.cfg.IncludeQuery)
	tracker.SetStartPosition(pos.ServerID, pos.Position)
	info := tracker.Snapshot()
	info.TimestampSeconds = time.Now().Unix()
	return info, nil
}

func postgresPosition(ctx context.Context, env *environment) (postgres.SourceInfo, error) {
	conn, err := pgx.Connect(ctx, env.cfg.DSN)
	if err != nil {
		return postgres.SourceInfo{}, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}
	defer conn.Close(context.Background())

	pos, err := postgres.LoadServerPosition(ctx, conn, env.cfg.Slot)
	if err != nil {
		return postgres.SourceInfo{}, err
	}

	tracker := postgres.NewTracker(pos.Database, logger.WithContext(ctx))
	tracker.SetStartPosition(pos)
	info := tracker.Snapshot()
	info.CommitTime = time.Now()
	return info, nil
}
