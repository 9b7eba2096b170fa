package liveobjects

import (
	"sync"
	"time"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
)

// poolObject is what the pool stores: a LiveMap or a LiveCounter.
type poolObject interface {
	ID() string
	Type() rdx.ObjectType
	base() *liveObject

	// applyOperation runs one inbound operation against the object
	// and returns the visible change, if any.
	applyOperation(op *protocol.ObjectOperation, mc *messageContext) (any, outcome)
	// overrideWithState replaces the object contents with a synced
	// state, returning the visible difference.
	overrideWithState(st *protocol.ObjectState, now time.Time) any
	// clear empties the object as if it was freshly created.
	clear() any
	// collectEntries drops tombstoned inner entries older than grace.
	collectEntries(now time.Time, grace time.Duration) int
}

// liveObject holds what both object kinds share. Its fields are
// guarded by lock; the embedding type uses the same lock for its own
// data.
type liveObject struct {
	id      string
	objects *Objects

	lock                    sync.RWMutex
	siteTimeserials         rdx.SiteVector
	createOperationIsMerged bool
	tombstone               bool
	tombstonedAt            time.Time
}

func (lo *liveObject) init(o *Objects, id string) {
	lo.id = id
	lo.objects = o
	lo.siteTimeserials = make(rdx.SiteVector)
}

func (lo *liveObject) ID() string {
	return lo.id
}

func (lo *liveObject) base() *liveObject {
	return lo
}

func (lo *liveObject) IsTombstoned() bool {
	lo.lock.RLock()
	defer lo.lock.RUnlock()
	return lo.tombstone
}

func (lo *liveObject) tombstoneInfo() (bool, time.Time) {
	lo.lock.RLock()
	defer lo.lock.RUnlock()
	return lo.tombstone, lo.tombstonedAt
}

// SiteTimeserials returns a copy of the object's site vector.
func (lo *liveObject) SiteTimeserials() rdx.SiteVector {
	lo.lock.RLock()
	defer lo.lock.RUnlock()
	return lo.siteTimeserials.Clone()
}

// OnDeleted registers fn to run once the object is deleted, either by
// an OBJECT_DELETE or by a tombstoned sync state.
func (lo *liveObject) OnDeleted(fn func()) *Subscription {
	return lo.objects.hub.subscribe(lifecycleKey(lo.id), func(u any) {
		if u == ObjectDeleted {
			fn()
		}
	})
}

// markTombstone must be called with lock held.
func (lo *liveObject) markTombstone(at time.Time) {
	lo.tombstone = true
	lo.tombstonedAt = at
}

// resetState must be called with lock held.
func (lo *liveObject) resetState(sites map[string]string) {
	lo.siteTimeserials = make(rdx.SiteVector, len(sites))
	for site, serial := range sites {
		lo.siteTimeserials[site] = serial
	}
	lo.createOperationIsMerged = false
}

// messageContext carries what every operation of one inbound message
// shares: serial, site and the admission verdict per object.
type messageContext struct {
	serial   string
	site     string
	at       time.Time
	admitted map[string]bool
}

func newMessageContext(msg *protocol.OperationMessage, now time.Time) *messageContext {
	at := now
	if msg.SerialTimestamp != nil {
		at = *msg.SerialTimestamp
	}
	return &messageContext{
		serial:   msg.Serial,
		site:     msg.SiteCode,
		at:       at,
		admitted: make(map[string]bool),
	}
}

// admit runs the site vector gate once per object per message; the
// object lock must be held.
func (mc *messageContext) admit(lo *liveObject) bool {
	if ok, seen := mc.admitted[lo.id]; seen {
		return ok
	}
	ok := lo.siteTimeserials.Accept(mc.site, mc.serial)
	mc.admitted[lo.id] = ok
	return ok
}

// outcome of one inbound operation; anything but applied is a
// discard reason.
type outcome string

const (
	applied          outcome = ""
	outMalformed     outcome = "malformed"
	outUnknownAction outcome = "unknown_action"
	outUnknownType   outcome = "unknown_type"
	outTypeMismatch  outcome = "type_mismatch"
	outCollected     outcome = "collected"
	outRoot          outcome = "root"
	outTombstoned    outcome = "tombstoned"
	outStale         outcome = "stale"
	outSuperseded    outcome = "superseded"
	outAlreadyMerged outcome = "already_merged"
)
