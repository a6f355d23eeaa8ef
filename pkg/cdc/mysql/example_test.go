package mysql_test

import (
	"fmt"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/cdc/mysql"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

func ExampleStructMaker_Struct() {
	common, err := sourceinfo.NewCommon(sourceinfo.CommonConfig{
		Connector:  mysql.ConnectorName,
		Version:    "1.0.0",
		ServerName: "inventory_db",
	})
	if err != nil {
		panic(err)
	}
	maker, err := mysql.NewStructMaker(common)
	if err != nil {
		panic(err)
	}

	record := maker.Struct(mysql.SourceInfo{
		ServerID:         1,
		Position:         mysql.BinlogPosition{Filename: "bin.000003", Offset: 154},
		TimestampSeconds: 1_600_000_000,
		Snapshot:         sourceinfo.SnapshotLast,
		ThreadID:         mysql.ThreadIDOf(7),
		Table:            mysql.TableOf("inventory", "orders"),
	})

	record.Range(func(f schema.Field, v interface{}) bool {
		fmt.Printf("%s=%v\n", f.Name, v)
		return true
	})
	// Output:
	// version=1.0.0
	// connector=mysql
	// name=inventory_db
	// server_id=1
	// ts_ms=1600000000000
	// file=bin.000003
	// pos=154
	// row=0
	// snapshot=true
	// thread=7
	// db=inventory
	// table=orders
}
