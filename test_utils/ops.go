package testutils

import (
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
)

func Serial(site string, time uint64, counter uint32) string {
	return rdx.NewTimeserial(site, time, counter).String()
}

func StringData(s string) protocol.ObjectData {
	return protocol.ObjectData{String: &s}
}

func NumberData(n float64) protocol.ObjectData {
	return protocol.ObjectData{Number: &n}
}

func BoolData(b bool) protocol.ObjectData {
	return protocol.ObjectData{Boolean: &b}
}

func BytesData(b []byte) protocol.ObjectData {
	return protocol.ObjectData{Bytes: b}
}

func RefData(id string) protocol.ObjectData {
	return protocol.ObjectData{ObjectID: id}
}

func MapSetOp(id, key string, data protocol.ObjectData) protocol.ObjectOperation {
	return protocol.ObjectOperation{
		Action:   protocol.ActionMapSet,
		ObjectID: id,
		MapOp:    &protocol.MapOp{Key: key, Data: &data},
	}
}

func MapRemoveOp(id, key string) protocol.ObjectOperation {
	return protocol.ObjectOperation{
		Action:   protocol.ActionMapRemove,
		ObjectID: id,
		MapOp:    &protocol.MapOp{Key: key},
	}
}

// MapCreateOp builds a MAP_CREATE whose entries carry no serial of
// their own and thus take the serial of the enclosing message.
func MapCreateOp(id string, entries map[string]protocol.ObjectData) protocol.ObjectOperation {
	m := &protocol.ObjectsMap{Entries: make(map[string]protocol.MapEntry, len(entries))}
	for key, data := range entries {
		m.Entries[key] = protocol.MapEntry{Data: data}
	}
	return protocol.ObjectOperation{
		Action:   protocol.ActionMapCreate,
		ObjectID: id,
		Map:      m,
	}
}

func CounterCreateOp(id string, count float64) protocol.ObjectOperation {
	return protocol.ObjectOperation{
		Action:   protocol.ActionCounterCreate,
		ObjectID: id,
		Counter:  &protocol.ObjectsCounter{Count: &count},
	}
}

func CounterIncOp(id string, amount float64) protocol.ObjectOperation {
	return protocol.ObjectOperation{
		Action:    protocol.ActionCounterInc,
		ObjectID:  id,
		CounterOp: &protocol.CounterOp{Amount: &amount},
	}
}

func ObjectDeleteOp(id string) protocol.ObjectOperation {
	return protocol.ObjectOperation{
		Action:   protocol.ActionObjectDelete,
		ObjectID: id,
	}
}

// Message wraps operations into an OBJECT message from one site.
func Message(serial, site string, ops ...protocol.ObjectOperation) *protocol.OperationMessage {
	return &protocol.OperationMessage{
		Serial:     serial,
		SiteCode:   site,
		Operations: ops,
	}
}
