package liveobjects

import (
	"maps"
	"time"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
)

type SyncState int

const (
	SyncIdle SyncState = iota
	SyncInProgress
)

func (s SyncState) String() string {
	return []string{"SyncIdle", "SyncInProgress"}[s]
}

// syncSequence accumulates the states of one OBJECT_SYNC sequence and
// the operation messages that arrive while it is open.
type syncSequence struct {
	id string
	// awaiting is set between an attach and the first sync message;
	// that message adopts the sequence instead of superseding it.
	awaiting bool
	states   map[string]*protocol.ObjectState
	order    []string
	buffered []*protocol.OperationMessage
}

func newSyncSequence(id string, awaiting bool) *syncSequence {
	return &syncSequence{
		id:       id,
		awaiting: awaiting,
		states:   make(map[string]*protocol.ObjectState),
	}
}

func (seq *syncSequence) add(st protocol.ObjectState) {
	if st.Map != nil {
		m := *st.Map
		m.Entries = maps.Clone(st.Map.Entries)
		st.Map = &m
	}
	prev, ok := seq.states[st.ObjectID]
	if !ok {
		seq.states[st.ObjectID] = &st
		seq.order = append(seq.order, st.ObjectID)
		return
	}
	// a map split over several messages
	if prev.Map != nil && st.Map != nil && !st.Tombstone {
		if prev.Map.Entries == nil {
			prev.Map.Entries = make(map[string]protocol.MapEntry, len(st.Map.Entries))
		}
		for key, e := range st.Map.Entries {
			prev.Map.Entries[key] = e
		}
		return
	}
	*prev = st
}

// HandleSyncMessage consumes one OBJECT_SYNC message. The pool is only
// touched when the last message of a sequence arrives.
func (o *Objects) HandleSyncMessage(msg *protocol.SyncMessage) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	last := true
	seqID := ""
	if msg.SyncSerial != "" {
		cursor, err := protocol.ParseSyncCursor(msg.SyncSerial)
		if err != nil {
			o.log.WarnCtx(o.ctx, "sync message discarded", "syncSerial", msg.SyncSerial, "err", err)
			return
		}
		seqID = cursor.SequenceID
		last = cursor.IsEndOfSequence()
	}
	if o.sequence == nil || o.sequence.awaiting || o.sequence.id != seqID || msg.SyncSerial == "" {
		o.beginSync(seqID, false)
	}
	for i := range msg.State {
		st := msg.State[i]
		if err := st.Validate(); err != nil {
			o.log.WarnCtx(o.ctx, "object state discarded", "objectId", st.ObjectID, "err", err)
			OperationsDiscarded.WithLabelValues("OBJECT_SYNC", string(outMalformed)).Inc()
			continue
		}
		o.sequence.add(st)
	}
	if last {
		o.endSync()
	}
}

// beginSync must be called with lock held.
func (o *Objects) beginSync(id string, awaiting bool) {
	if seq := o.sequence; seq != nil {
		if seq.awaiting && !awaiting {
			seq.id = id
			seq.awaiting = false
			return
		}
		o.abandonSync("superseded")
	}
	o.log.DebugCtx(o.ctx, "sync started", "sequence", id)
	o.sequence = newSyncSequence(id, awaiting)
	o.enterSyncing()
}

// enterSyncing must be called with lock held. Listeners hear about
// the transition only, not about a superseding sequence.
func (o *Objects) enterSyncing() {
	if !o.syncState.CompareAndSwap(int32(SyncIdle), int32(SyncInProgress)) {
		return
	}
	o.syncLock.Lock()
	select {
	case <-o.synced:
		o.synced = make(chan struct{})
	default:
	}
	o.syncLock.Unlock()
	o.hub.emitSync(ObjectsSyncing)
}

// abandonSync drops the open sequence and everything it buffered.
func (o *Objects) abandonSync(result string) {
	seq := o.sequence
	if seq == nil {
		return
	}
	o.sequence = nil
	if n := len(seq.buffered); n > 0 {
		BufferedOperations.Sub(float64(n))
		o.log.InfoCtx(o.ctx, "buffered operations dropped", "sequence", seq.id, "count", n, "reason", result)
	}
	SyncSequences.WithLabelValues(result).Inc()
}

func (o *Objects) endSync() {
	seq := o.sequence
	o.sequence = nil
	now := o.opts.Clock.Now()
	for _, id := range seq.order {
		o.applyState(seq.states[id], now)
	}
	BufferedOperations.Sub(float64(len(seq.buffered)))
	for _, msg := range seq.buffered {
		o.applyMessage(msg)
	}
	SyncSequences.WithLabelValues("completed").Inc()
	o.log.DebugCtx(o.ctx, "sync completed", "sequence", seq.id, "objects", len(seq.order), "replayed", len(seq.buffered))
	o.finishSync()
}

func (o *Objects) finishSync() {
	o.syncState.Store(int32(SyncIdle))
	o.syncLock.Lock()
	select {
	case <-o.synced:
	default:
		close(o.synced)
	}
	o.syncLock.Unlock()
	o.hub.emitSync(ObjectsSynced)
}

// applyState overwrites one object with its synced state, keeping the
// instance callers may already hold.
func (o *Objects) applyState(st *protocol.ObjectState, now time.Time) {
	t, ok := stateType(st)
	if !ok {
		o.log.WarnCtx(o.ctx, "object state of unknown type", "objectId", st.ObjectID)
		OperationsDiscarded.WithLabelValues("OBJECT_SYNC", string(outUnknownType)).Inc()
		return
	}
	obj := o.pool.get(st.ObjectID)
	if obj == nil {
		obj, _ = o.pool.create(t, st.ObjectID)
		if obj == nil {
			o.log.DebugCtx(o.ctx, "object state of collected object", "objectId", st.ObjectID)
			OperationsDiscarded.WithLabelValues("OBJECT_SYNC", string(outCollected)).Inc()
			return
		}
	}
	if obj.Type() != t {
		o.log.WarnCtx(o.ctx, "object state type mismatch", "objectId", st.ObjectID, "state", t, "local", obj.Type())
		OperationsDiscarded.WithLabelValues("OBJECT_SYNC", string(outTypeMismatch)).Inc()
		return
	}
	o.hub.awaitIdle(obj.ID())
	wasDeleted := obj.base().IsTombstoned()
	o.hub.emit(obj.ID(), obj.overrideWithState(st, now))
	if !wasDeleted && obj.base().IsTombstoned() {
		o.hub.emitLifecycle(obj.ID(), ObjectDeleted)
	}
}

func stateType(st *protocol.ObjectState) (rdx.ObjectType, bool) {
	switch {
	case st.Map != nil:
		return rdx.TypeMap, true
	case st.Counter != nil:
		return rdx.TypeCounter, true
	}
	return rdx.ObjectTypeOf(st.ObjectID)
}
