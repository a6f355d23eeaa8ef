package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/mysql"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/config"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/logger"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/observability"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

var version = "0.1.0"

// globalFlags are shared by every command
type globalFlags struct {
	configFile string
	logLevel   string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "sourceinfo",
		Short: "Project CDC stream positions into source metadata records",
		Long: `sourceinfo builds the source metadata schema of a CDC connector and projects
stream position descriptors into records conforming to it.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sourceinfo v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newSchemaCommand(flags))
	root.AddCommand(newProjectCommand(flags))
	root.AddCommand(newCheckCommand(flags))
	root.AddCommand(newPositionCommand(flags))

	return root
}

// environment is the state every command starts from
type environment struct {
	cfg       *config.Config
	log       *zap.Logger
	collector *metrics.Collector
	projector sourceinfo.Projector
	shutdown  observability.ShutdownFunc
}

// context labels ctx with the connector and server name for logger.WithContext
func (e *environment) context(ctx context.Context) context.Context {
	return logger.NewContext(ctx, e.cfg.Connector, e.cfg.Name)
}

// close flushes pending spans and buffered log entries
func (e *environment) close() {
	if err := e.shutdown(context.Background()); err != nil {
		e.log.Warn("failed to flush traces", zap.Error(err))
	}
	_ = logger.Sync()
}

func setup(flags *globalFlags) (*environment, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}

	if err := resolveServerName(cfg); err != nil {
		return nil, err
	}

	log := logger.ForConnector(cfg.Connector, cfg.Name).With(zap.String("component", "sourceinfo-cli"))
	collector := metrics.NewCollector(prometheus.NewRegistry())

	projector, err := cdc.NewProjector(cdc.ProjectorConfig{
		Connector:        cdc.ConnectorType(cfg.Connector),
		Version:          cfg.Version,
		ServerName:       cfg.Name,
		SchemaNamePrefix: cfg.SchemaNamePrefix,
		Collector:        collector,
		Logger:           log,
		Strict:           cfg.Strict,
	})
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.Init(cfg.Tracing, version, os.Stderr)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, log: log, collector: collector, projector: projector, shutdown: shutdown}, nil
}

// resolveServerName derives the logical name from the MySQL DSN when unset
func resolveServerName(cfg *config.Config) error {
	if cfg.Name != "" {
		return nil
	}
	if cdc.ConnectorType(cfg.Connector) != cdc.ConnectorMySQL {
		return errors.Newf(errors.ErrorTypeConfig, "name is required for %s connectors", cfg.Connector)
	}
	name, err := mysql.ServerNameFromDSN(cfg.DSN)
	if err != nil {
		return err
	}
	cfg.Name = name
	return nil
}
