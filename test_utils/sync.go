package testutils

import (
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
)

// SyncMsg builds one OBJECT_SYNC message of a sequence.
func SyncMsg(sequence, cursor string, states ...protocol.ObjectState) *protocol.SyncMessage {
	return &protocol.SyncMessage{
		SyncSerial: sequence + ":" + cursor,
		State:      states,
	}
}

// SingleSyncMsg builds an OBJECT_SYNC message carrying a whole sync.
func SingleSyncMsg(states ...protocol.ObjectState) *protocol.SyncMessage {
	return &protocol.SyncMessage{State: states}
}

type Entry struct {
	Key       string
	Serial    string
	Data      protocol.ObjectData
	Tombstone bool
}

func MapState(id string, sites map[string]string, entries ...Entry) protocol.ObjectState {
	m := &protocol.ObjectsMap{Entries: make(map[string]protocol.MapEntry, len(entries))}
	for _, e := range entries {
		m.Entries[e.Key] = protocol.MapEntry{
			Tombstone:  e.Tombstone,
			Timeserial: e.Serial,
			Data:       e.Data,
		}
	}
	return protocol.ObjectState{
		ObjectID:        id,
		SiteTimeserials: sites,
		Map:             m,
	}
}

func CounterState(id string, sites map[string]string, count float64) protocol.ObjectState {
	return protocol.ObjectState{
		ObjectID:        id,
		SiteTimeserials: sites,
		Counter:         &protocol.ObjectsCounter{Count: &count},
	}
}

func TombstoneState(id string, sites map[string]string) protocol.ObjectState {
	st := protocol.ObjectState{
		ObjectID:        id,
		SiteTimeserials: sites,
		Tombstone:       true,
	}
	if t, _ := rdx.ObjectTypeOf(id); t == rdx.TypeCounter {
		st.Counter = &protocol.ObjectsCounter{}
	} else {
		st.Map = &protocol.ObjectsMap{}
	}
	return st
}
