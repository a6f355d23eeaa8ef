// Package sourceinfo defines the contract shared by every connector's
// source metadata projection.
//
// A connector keeps a position descriptor describing where it is in the
// upstream change stream. A StructMaker turns a frozen copy of that
// descriptor into a schema.Struct that is attached to each emitted change
// event. Variants compose their schema from the Common skeleton:
//
//	common, err := sourceinfo.NewCommon(sourceinfo.CommonConfig{
//		Connector:  "mysql",
//		Version:    "1.0.0",
//		ServerName: "inventory",
//	})
//	builder := common.SchemaBuilder(common.SchemaName("mysql")).
//		Field("server_id", schema.TypeInt64)
//
// Absent values are modelled with Optional and are never written to a
// record. Encoders resolve them from the schema defaults.
package sourceinfo
