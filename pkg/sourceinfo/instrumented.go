package sourceinfo

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/metrics"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
)

// InstrumentConfig controls the wrapper returned by Instrument
type InstrumentConfig struct {
	// Connector labels the emitted metrics
	Connector string
	// Collector receives counters; nil disables metrics
	Collector *metrics.Collector
	// Logger receives debug output; nil uses a no-op logger
	Logger *zap.Logger
	// Strict validates every record and panics when a mandatory field is missing
	Strict bool
}

type instrumentedMaker[T any] struct {
	maker     StructMaker[T]
	connector string
	collector *metrics.Collector
	logger    *zap.Logger
	strict    bool
	optional  []string
}

// Instrument wraps maker so every projected record is counted and, in strict
// mode, validated against its schema.
func Instrument[T any](maker StructMaker[T], cfg InstrumentConfig) StructMaker[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := maker.Schema()
	optional := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		if f.Optional {
			optional = append(optional, f.Name)
		}
	}

	if cfg.Collector != nil {
		cfg.Collector.SetSchemaFields(cfg.Connector, s.Len())
	}

	return &instrumentedMaker[T]{
		maker:     maker,
		connector: cfg.Connector,
		collector: cfg.Collector,
		logger:    logger.With(zap.String("component", "sourceinfo"), zap.String("schema", s.Name())),
		strict:    cfg.Strict,
		optional:  optional,
	}
}

func (m *instrumentedMaker[T]) Schema() *schema.Schema {
	return m.maker.Schema()
}

func (m *instrumentedMaker[T]) Struct(info T) *schema.Struct {
	st := m.maker.Struct(info)

	if m.strict {
		if err := st.Validate(); err != nil {
			m.logger.Error("projected record violates schema", zap.Error(err))
			panic(err)
		}
	}

	if m.collector != nil {
		m.collector.RecordProjected(m.connector)
		for _, name := range m.optional {
			if !st.Has(name) {
				m.collector.RecordOmitted(m.connector, name)
			}
		}
	}

	if ce := m.logger.Check(zap.DebugLevel, "projected source record"); ce != nil {
		ce.Write(zap.Int("fields", st.Len()))
	}
	return st
}
