package liveobjects

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	"github.com/pkg/errors"
)

type mapEntry struct {
	data         protocol.ObjectData
	timeserial   string
	tombstone    bool
	tombstonedAt time.Time
}

// LiveMap is a last-writer-wins map shared by every client of the
// channel. Values may reference other live objects by id.
type LiveMap struct {
	liveObject
	data map[string]mapEntry
}

func newLiveMap(o *Objects, id string) *LiveMap {
	m := &LiveMap{data: make(map[string]mapEntry)}
	m.init(o, id)
	return m
}

func (m *LiveMap) Type() rdx.ObjectType {
	return rdx.TypeMap
}

// Get returns the value under key. Tombstoned entries and references
// to deleted or unknown objects read as absent.
func (m *LiveMap) Get(key string) Value {
	m.lock.RLock()
	e, ok := m.data[key]
	dead := m.tombstone
	m.lock.RUnlock()
	if !ok || dead || e.tombstone {
		return Value{}
	}
	return m.objects.pool.resolve(&e.data)
}

func (m *LiveMap) Size() (n int) {
	for range m.Entries() {
		n++
	}
	return
}

// Entries iterates visible keys in lexical order over a snapshot.
func (m *LiveMap) Entries() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		m.lock.RLock()
		if m.tombstone {
			m.lock.RUnlock()
			return
		}
		keys := make([]string, 0, len(m.data))
		datas := make(map[string]protocol.ObjectData, len(m.data))
		for key, e := range m.data {
			if e.tombstone {
				continue
			}
			keys = append(keys, key)
			datas[key] = e.data
		}
		m.lock.RUnlock()
		slices.Sort(keys)
		for _, key := range keys {
			data := datas[key]
			v := m.objects.pool.resolve(&data)
			if v.IsAbsent() {
				continue
			}
			if !yield(key, v) {
				return
			}
		}
	}
}

func (m *LiveMap) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for key := range m.Entries() {
			if !yield(key) {
				return
			}
		}
	}
}

func (m *LiveMap) Values() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for _, v := range m.Entries() {
			if !yield(v) {
				return
			}
		}
	}
}

// Set publishes a MAP_SET; the local state changes once the operation
// comes back from the channel.
func (m *LiveMap) Set(ctx context.Context, key string, value Value) error {
	if m.IsTombstoned() {
		return errors.Wrapf(liveobjects_errors.ErrObjectDeleted, "set %s on %s", key, m.id)
	}
	data, err := value.objectData()
	if err != nil {
		return errors.Wrapf(err, "set %s on %s", key, m.id)
	}
	op := protocol.ObjectOperation{
		Action:   protocol.ActionMapSet,
		ObjectID: m.id,
		MapOp:    &protocol.MapOp{Key: key, Data: &data},
	}
	return m.objects.publish(ctx, op)
}

func (m *LiveMap) Remove(ctx context.Context, key string) error {
	if m.IsTombstoned() {
		return errors.Wrapf(liveobjects_errors.ErrObjectDeleted, "remove %s on %s", key, m.id)
	}
	op := protocol.ObjectOperation{
		Action:   protocol.ActionMapRemove,
		ObjectID: m.id,
		MapOp:    &protocol.MapOp{Key: key},
	}
	return m.objects.publish(ctx, op)
}

func (m *LiveMap) Subscribe(fn func(MapUpdate)) *Subscription {
	return m.objects.hub.subscribe(m.id, func(u any) {
		fn(u.(MapUpdate))
	})
}

func (m *LiveMap) UnsubscribeAll() {
	m.objects.hub.unsubscribeAll(m.id)
}

// Updates streams the changes of this map until ctx is done or the
// loop breaks. Every call starts a fresh subscription.
func (m *LiveMap) Updates(ctx context.Context) iter.Seq[MapUpdate] {
	return streamUpdates(ctx, m.Subscribe)
}

func (m *LiveMap) applyOperation(op *protocol.ObjectOperation, mc *messageContext) (any, outcome) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.tombstone {
		return nil, outTombstoned
	}
	if !mc.admit(&m.liveObject) {
		return nil, outStale
	}
	switch op.Action {
	case protocol.ActionMapCreate:
		if m.createOperationIsMerged {
			return nil, outAlreadyMerged
		}
		return m.mergeInitialData(op.Map, mc.serial, mc.at), applied
	case protocol.ActionMapSet:
		upd := make(MapUpdate)
		if !m.setEntry(op.MapOp.Key, *op.MapOp.Data, mc.serial, upd) {
			return nil, outSuperseded
		}
		return upd, applied
	case protocol.ActionMapRemove:
		upd := make(MapUpdate)
		if !m.removeEntry(op.MapOp.Key, mc.serial, mc.at, upd) {
			return nil, outSuperseded
		}
		return upd, applied
	case protocol.ActionObjectDelete:
		m.markTombstone(mc.at)
		return m.clearData(), applied
	}
	return nil, outTypeMismatch
}

// mergeInitialData applies the entries of a create operation as a
// batch of LWW writes; entries without a serial take fallback.
func (m *LiveMap) mergeInitialData(initial *protocol.ObjectsMap, fallback string, at time.Time) MapUpdate {
	m.createOperationIsMerged = true
	upd := make(MapUpdate)
	if initial == nil {
		return upd
	}
	for key, e := range initial.Entries {
		serial := e.Timeserial
		if serial == "" {
			serial = fallback
		}
		if e.Tombstone {
			m.removeEntry(key, serial, at, upd)
		} else {
			m.setEntry(key, e.Data, serial, upd)
		}
	}
	return upd
}

// seed fills a map created locally. Its entries carry no serial until
// the create operation comes back from the channel.
func (m *LiveMap) seed(initial *protocol.ObjectsMap) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.createOperationIsMerged = true
	for key, e := range initial.Entries {
		if e.Data.ObjectID != "" {
			m.objects.pool.getOrCreateZeroValue(e.Data.ObjectID)
		}
		m.data[key] = mapEntry{data: e.Data}
	}
}

// setEntry must be called with lock held.
func (m *LiveMap) setEntry(key string, data protocol.ObjectData, serial string, upd MapUpdate) bool {
	e := m.data[key]
	if !rdx.After(serial, e.timeserial) {
		return false
	}
	if data.ObjectID != "" {
		m.objects.pool.getOrCreateZeroValue(data.ObjectID)
	}
	m.data[key] = mapEntry{data: data, timeserial: serial}
	upd[key] = KeyUpdated
	return true
}

// removeEntry must be called with lock held. Only a key that was
// visible is reported as removed.
func (m *LiveMap) removeEntry(key, serial string, at time.Time, upd MapUpdate) bool {
	e, existed := m.data[key]
	if !rdx.After(serial, e.timeserial) {
		return false
	}
	m.data[key] = mapEntry{timeserial: serial, tombstone: true, tombstonedAt: at}
	if existed && !e.tombstone {
		upd[key] = KeyRemoved
	}
	return true
}

// clearData must be called with lock held.
func (m *LiveMap) clearData() MapUpdate {
	upd := make(MapUpdate)
	for key, e := range m.data {
		if !e.tombstone {
			upd[key] = KeyRemoved
		}
	}
	m.data = make(map[string]mapEntry)
	return upd
}

func (m *LiveMap) clear() any {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.resetState(nil)
	return m.clearData()
}

func (m *LiveMap) overrideWithState(st *protocol.ObjectState, now time.Time) any {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.tombstone {
		return nil
	}
	prev := m.visible()
	m.resetState(st.SiteTimeserials)
	m.data = make(map[string]mapEntry)
	if st.Tombstone && m.id != rdx.RootID {
		m.markTombstone(now)
		return diffMaps(prev, nil)
	}
	if st.Map != nil {
		for key, e := range st.Map.Entries {
			me := mapEntry{data: e.Data, timeserial: e.Timeserial, tombstone: e.Tombstone}
			if e.Tombstone {
				me.data = protocol.ObjectData{}
				me.tombstonedAt = now
			} else if e.Data.ObjectID != "" {
				m.objects.pool.getOrCreateZeroValue(e.Data.ObjectID)
			}
			m.data[key] = me
		}
	}
	if st.CreateOp != nil {
		m.mergeInitialData(st.CreateOp.Map, "", now)
	}
	return diffMaps(prev, m.visible())
}

// visible must be called with lock held.
func (m *LiveMap) visible() map[string]protocol.ObjectData {
	vis := make(map[string]protocol.ObjectData, len(m.data))
	for key, e := range m.data {
		if !e.tombstone {
			vis[key] = e.data
		}
	}
	return vis
}

func diffMaps(prev, next map[string]protocol.ObjectData) MapUpdate {
	upd := make(MapUpdate)
	for key, was := range prev {
		now, ok := next[key]
		if !ok {
			upd[key] = KeyRemoved
		} else if !was.Equal(&now) {
			upd[key] = KeyUpdated
		}
	}
	for key := range next {
		if _, ok := prev[key]; !ok {
			upd[key] = KeyUpdated
		}
	}
	return upd
}

func (m *LiveMap) collectEntries(now time.Time, grace time.Duration) (n int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for key, e := range m.data {
		if e.tombstone && now.Sub(e.tombstonedAt) >= grace {
			delete(m.data, key)
			n++
		}
	}
	return
}

// entryCounts splits the physically kept entries into live and
// tombstoned ones.
func (m *LiveMap) entryCounts() (live, dead int) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for _, e := range m.data {
		if e.tombstone {
			dead++
		} else {
			live++
		}
	}
	return
}
