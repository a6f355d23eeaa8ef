// Package metrics provides Prometheus instrumentation for source metadata
// projection.
//
// # Overview
//
// A Collector owns a fixed set of metric vectors registered on a caller
// supplied prometheus.Registerer, so tests and embedding applications can use
// isolated registries:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg)
//	collector.RecordProjected("mysql")
//	collector.RecordOmitted("mysql", "gtid")
//
// # Metrics
//
//	sourceinfo_records_projected_total{connector}
//	sourceinfo_fields_omitted_total{connector,field}
//	sourceinfo_schema_fields{connector}
//	sourceinfo_records_encoded_total{format,status}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sourceinfo"

// Collector records projection and encoding activity
type Collector struct {
	recordsProjected *prometheus.CounterVec // records produced per connector
	fieldsOmitted    *prometheus.CounterVec // optional fields left absent
	schemaFields     *prometheus.GaugeVec   // declared field count per connector
	recordsEncoded   *prometheus.CounterVec // encoder outcomes per format
	startTime        time.Time
}

// NewCollector registers the projection metrics on reg. A nil reg uses the
// default Prometheus registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		recordsProjected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_projected_total",
				Help:      "Total number of source metadata records projected",
			},
			[]string{"connector"},
		),
		fieldsOmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fields_omitted_total",
				Help:      "Optional source metadata fields left absent in projected records",
			},
			[]string{"connector", "field"},
		),
		schemaFields: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schema_fields",
				Help:      "Number of fields declared by the source metadata schema",
			},
			[]string{"connector"},
		),
		recordsEncoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_encoded_total",
				Help:      "Source metadata records passed to an encoder",
			},
			[]string{"format", "status"},
		),
		startTime: time.Now(),
	}
}

// RecordProjected counts one projected record
func (c *Collector) RecordProjected(connector string) {
	c.recordsProjected.WithLabelValues(connector).Inc()
}

// RecordOmitted counts one optional field left absent
func (c *Collector) RecordOmitted(connector, field string) {
	c.fieldsOmitted.WithLabelValues(connector, field).Inc()
}

// SetSchemaFields publishes the declared field count of a connector's schema
func (c *Collector) SetSchemaFields(connector string, n int) {
	c.schemaFields.WithLabelValues(connector).Set(float64(n))
}

// RecordEncoded counts one encoder outcome; err decides the status label
func (c *Collector) RecordEncoded(format string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	c.recordsEncoded.WithLabelValues(format, status).Inc()
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Projected exposes the projected-records vector for scraping helpers and tests
func (c *Collector) Projected() *prometheus.CounterVec {
	return c.recordsProjected
}

// Omitted exposes the omitted-fields vector for scraping helpers and tests
func (c *Collector) Omitted() *prometheus.CounterVec {
	return c.fieldsOmitted
}

// Encoded exposes the encoder-outcome vector for scraping helpers and tests
func (c *Collector) Encoded() *prometheus.CounterVec {
	return c.recordsEncoded
}
