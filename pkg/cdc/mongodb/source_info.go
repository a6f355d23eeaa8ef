// Package mongodb projects the oplog position of a MongoDB change stream
// event into its source metadata record.
package mongodb

import (
	"strconv"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/schema"
	"github.com/ajitpratap0/nebula-sourceinfo/pkg/sourceinfo"
)

// ConnectorName is the connector type recorded in every MongoDB source record
const ConnectorName = "mongodb"

// Field keys of the MongoDB source record
const (
	TimestampKey    = "ts_ms"
	SnapshotKey     = "snapshot"
	DatabaseKey     = "db"
	ReplicaSetKey   = "rs"
	CollectionKey   = "collection"
	OrderKey        = "ord"
	OperationIDKey  = "h"
	TxOrderKey      = "tord"
	SessionTxnIDKey = "stxnid"
)

// SourceInfo is the stream position descriptor of a MongoDB connector
type SourceInfo struct {
	ReplicaSet   string                      `json:"rs"`
	Database     string                      `json:"db"`
	Collection   string                      `json:"collection"`
	Timestamp    primitive.Timestamp         `json:"ts"`
	Snapshot     sourceinfo.SnapshotState    `json:"snapshot"`
	OperationID  sourceinfo.Optional[int64]  `json:"h"`
	TxOrder      sourceinfo.Optional[int64]  `json:"tord"`
	SessionTxnID sourceinfo.Optional[string] `json:"stxnid"`
}

// SourceInfoFromChangeEvent reads the position of a change stream document
// emitted by replica set rs.
func SourceInfoFromChangeEvent(rs string, doc bson.Raw) (SourceInfo, error) {
	info := SourceInfo{ReplicaSet: rs}

	clusterTime, err := doc.LookupErr("clusterTime")
	if err != nil {
		return info, errors.Wrap(err, errors.ErrorTypeData, "change event has no clusterTime")
	}
	t, i, ok := clusterTime.TimestampOK()
	if !ok {
		return info, errors.Newf(errors.ErrorTypeData, "clusterTime is %s, not a timestamp", clusterTime.Type)
	}
	info.Timestamp = primitive.Timestamp{T: t, I: i}

	if info.Database, err = lookupString(doc, "ns", "db"); err != nil {
		return info, err
	}
	if info.Collection, err = lookupString(doc, "ns", "coll"); err != nil {
		return info, err
	}

	txnNumber, err := doc.LookupErr("txnNumber")
	if err != nil {
		return info, nil
	}
	txn, ok := txnNumber.Int64OK()
	if !ok {
		return info, errors.Newf(errors.ErrorTypeData, "txnNumber is %s, not an int64", txnNumber.Type)
	}

	session, ok := sessionID(doc)
	if !ok {
		return info, nil
	}
	info.SessionTxnID = sourceinfo.Some(session + ":" + strconv.FormatInt(txn, 10))
	return info, nil
}

// sessionID reads the UUID of the logical session owning a transaction
func sessionID(doc bson.Raw) (string, bool) {
	lsid, err := doc.LookupErr("lsid", "id")
	if err != nil {
		return "", false
	}
	_, data, ok := lsid.BinaryOK()
	if !ok {
		return "", false
	}
	id, err := uuid.FromBytes(data)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func lookupString(doc bson.Raw, keys ...string) (string, error) {
	v, err := doc.LookupErr(keys...)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "change event field is missing").
			WithDetail("field", keys)
	}
	s, ok := v.StringValueOK()
	if !ok {
		return "", errors.Newf(errors.ErrorTypeData, "change event field is %s, not a string", v.Type).
			WithDetail("field", keys)
	}
	return s, nil
}

// StructMaker projects SourceInfo values into MongoDB source records
type StructMaker struct {
	common *sourceinfo.Common
	schema *schema.Schema
}

var _ sourceinfo.StructMaker[SourceInfo] = (*StructMaker)(nil)

// NewStructMaker builds the MongoDB source schema once
func NewStructMaker(common *sourceinfo.Common) (*StructMaker, error) {
	s, err := common.SchemaBuilder(common.SchemaName(ConnectorName)).
		Field(TimestampKey, schema.TypeInt64).
		OptionalFieldWithDefault(SnapshotKey, schema.TypeBoolean, false).
		Field(DatabaseKey, schema.TypeString).
		Field(ReplicaSetKey, schema.TypeString).
		Field(CollectionKey, schema.TypeString).
		Field(OrderKey, schema.TypeInt32).
		OptionalField(OperationIDKey, schema.TypeInt64).
		OptionalField(TxOrderKey, schema.TypeInt64).
		OptionalField(SessionTxnIDKey, schema.TypeString).
		Build()
	if err != nil {
		return nil, err
	}
	return &StructMaker{common: common, schema: s}, nil
}

// Schema returns the cached schema
func (m *StructMaker) Schema() *schema.Schema {
	return m.schema
}

// Struct projects info into a new record
func (m *StructMaker) Struct(info SourceInfo) *schema.Struct {
	st := m.common.Struct(m.schema).
		Put(TimestampKey, int64(info.Timestamp.T)*1000).
		Put(DatabaseKey, info.Database).
		Put(ReplicaSetKey, info.ReplicaSet).
		Put(CollectionKey, info.Collection).
		Put(OrderKey, int32(info.Timestamp.I))

	if info.Snapshot.IsLast() {
		st.Put(SnapshotKey, true)
	}
	if h, ok := info.OperationID.Get(); ok {
		st.Put(OperationIDKey, h)
	}
	if tord, ok := info.TxOrder.Get(); ok {
		st.Put(TxOrderKey, tord)
	}
	if stxnid, ok := info.SessionTxnID.Get(); ok {
		st.Put(SessionTxnIDKey, stxnid)
	}
	return st
}
