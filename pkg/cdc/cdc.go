// Package cdc builds the source metadata projector for a configured
// connector type.
package cdc

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/mongodb"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/mysql"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/postgres"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// ConnectorType represents the type of CDC connector
type ConnectorType string

const (
	ConnectorMySQL      ConnectorType = mysql.ConnectorName
	ConnectorPostgreSQL ConnectorType = postgres.ConnectorName
	ConnectorMongoDB    ConnectorType = mongodb.ConnectorName
)

// ProjectorConfig identifies the connector and how its records are observed
type ProjectorConfig struct {
	Connector        ConnectorType
	Version          string
	ServerName       string
	SchemaNamePrefix string

	Collector *metrics.Collector
	Logger    *zap.Logger
	Strict    bool
}

type factory func(common *sourceinfo.Common, cfg ProjectorConfig) (sourceinfo.Projector, error)

var factories = map[ConnectorType]factory{
	ConnectorMySQL: func(common *sourceinfo.Common, cfg ProjectorConfig) (sourceinfo.Projector, error) {
		m, err := mysql.NewStructMaker(common)
		if err != nil {
			return nil, err
		}
		return wrap[mysql.SourceInfo](m, cfg), nil
	},
	ConnectorPostgreSQL: func(common *sourceinfo.Common, cfg ProjectorConfig) (sourceinfo.Projector, error) {
		m, err := postgres.NewStructMaker(common)
		if err != nil {
			return nil, err
		}
		return wrap[postgres.SourceInfo](m, cfg), nil
	},
	ConnectorMongoDB: func(common *sourceinfo.Common, cfg ProjectorConfig) (sourceinfo.Projector, error) {
		m, err := mongodb.NewStructMaker(common)
		if err != nil {
			return nil, err
		}
		return wrap[mongodb.SourceInfo](m, cfg), nil
	},
}

func wrap[T any](maker sourceinfo.StructMaker[T], cfg ProjectorConfig) sourceinfo.Projector {
	return sourceinfo.JSONProjector(sourceinfo.Instrument(maker, sourceinfo.InstrumentConfig{
		Connector: string(cfg.Connector),
		Collector: cfg.Collector,
		Logger:    cfg.Logger,
		Strict:    cfg.Strict,
	}))
}

// SupportedConnectors lists the connector types NewProjector accepts
func SupportedConnectors() []ConnectorType {
	types := make([]ConnectorType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// NewProjector builds the projector for cfg.Connector. The schema is built
// here, once; errors are config errors except for unknown connector types.
func NewProjector(cfg ProjectorConfig) (sourceinfo.Projector, error) {
	build, ok := factories[cfg.Connector]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "unsupported connector type %q", cfg.Connector).
			WithDetail("supported", SupportedConnectors())
	}

	common, err := sourceinfo.NewCommon(sourceinfo.CommonConfig{
		Connector:        string(cfg.Connector),
		Version:          cfg.Version,
		ServerName:       cfg.ServerName,
		SchemaNamePrefix: cfg.SchemaNamePrefix,
	})
	if err != nil {
		return nil, err
	}

	p, err := build(common, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("source metadata projector ready",
			zap.String("connector", string(cfg.Connector)),
			zap.String("server_name", cfg.ServerName),
			zap.String("schema", p.Schema().Name()),
			zap.Int("fields", p.Schema().Len()))
	}
	return p, nil
}
