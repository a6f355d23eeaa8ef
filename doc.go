// Package sourceinfo is the root of nebula-sourceinfo, which builds the source
// metadata block attached to every change event emitted by a CDC connector.
//
// Each connector variant defines a fixed record schema named
// "<prefix>.<connector>.Source" and projects its current stream position into
// a record conforming to it. Optional fields that have no value are left out
// of the record rather than written as zero values.
//
// # Packages
//
//   - pkg/sourceinfo: common identity fields, the Optional type, snapshot
//     states and the StructMaker contract shared by all variants
//   - pkg/cdc/mysql: binlog position descriptor, struct maker and a tracker
//     that follows go-mysql replication events
//   - pkg/cdc/postgres and pkg/cdc/mongodb: the same contract over WAL
//     positions and change stream events
//   - pkg/cdc: connector registry returning type-erased projectors
//   - pkg/schema: the schema builder, records and a compatibility registry
//   - pkg/formats: Avro and JSON encoders for projected records
//   - pkg/observability: OpenTelemetry tracing around server reads and projection
//   - pkg/config, pkg/logger, pkg/metrics, pkg/errors, pkg/json: ambient stack
//
// # Quick Start
//
//	common, _ := sourceinfo.NewCommon(sourceinfo.CommonConfig{
//		Connector:  mysql.ConnectorName,
//		Version:    "1.0.0",
//		ServerName: "inventory",
//	})
//	maker, _ := mysql.NewStructMaker(common)
//	record := maker.Struct(tracker.Snapshot())
//
// The sourceinfo command wraps these packages:
//
//	sourceinfo schema --config mysql.yaml --avro
//	sourceinfo project --config mysql.yaml --input positions.json
//	sourceinfo check --config mysql.yaml --registry schemas.json --mode BACKWARD
//	sourceinfo position --config mysql.yaml
//	sourceinfo position --config postgres.yaml  # slot: sourceinfo_slot
package sourceinfo
