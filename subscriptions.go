package liveobjects

import (
	"context"
	"slices"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/drpcorg/liveobjects/utils"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

type MapChange byte

const (
	KeyUpdated MapChange = 'U'
	KeyRemoved MapChange = 'R'
)

func (c MapChange) String() string {
	if c == KeyRemoved {
		return "removed"
	}
	return "updated"
}

// MapUpdate lists every key one operation touched.
type MapUpdate map[string]MapChange

// CounterUpdate is the signed amount one operation added.
type CounterUpdate struct {
	Amount float64
}

// LifecycleEvent is delivered to OnDeleted listeners.
type LifecycleEvent string

const ObjectDeleted LifecycleEvent = "deleted"

// ObjectsEvent is delivered to OnSyncEvent listeners.
type ObjectsEvent string

const (
	ObjectsSyncing ObjectsEvent = "syncing"
	ObjectsSynced  ObjectsEvent = "synced"
)

// Subscription is a handle returned by Subscribe, OnDeleted and
// OnSyncEvent.
type Subscription struct {
	id   string
	key  string
	hub  *SubscriptionHub
	fn   func(update any)
	once sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe stops further deliveries. Updates emitted before the
// call still reach this listener.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// notification carries the listeners that were registered when the
// update was emitted.
type notification struct {
	objectID string
	subs     []*Subscription
	update   any
	done     chan struct{}
}

// SubscriptionHub keeps listeners per key and fans updates out to
// them. Updates of one object always land on the same shard, so a
// listener sees them in mutation order while independent objects are
// delivered concurrently. A writer calls awaitIdle before mutating an
// object again, so a listener reading the object sees the state its
// update describes.
type SubscriptionHub struct {
	listeners *xsync.MapOf[string, []*Subscription]
	// pending holds the done channel of the newest queued notification
	// per object id.
	pending *xsync.MapOf[string, chan struct{}]
	shards  []*utils.Mailbox[notification]
	log     utils.Logger
	wg      sync.WaitGroup
}

const syncEventsKey = "\x00sync"

func lifecycleKey(objectID string) string {
	return objectID + "\x00lifecycle"
}

func newSubscriptionHub(workers int, log utils.Logger) *SubscriptionHub {
	h := &SubscriptionHub{
		listeners: xsync.NewMapOf[string, []*Subscription](),
		pending:   xsync.NewMapOf[string, chan struct{}](),
		shards:    make([]*utils.Mailbox[notification], workers),
		log:       log,
	}
	for i := range h.shards {
		h.shards[i] = utils.NewMailbox[notification]()
		h.wg.Add(1)
		go h.run(h.shards[i])
	}
	return h
}

func (h *SubscriptionHub) subscribe(key string, fn func(update any)) *Subscription {
	sub := &Subscription{
		id:  uuid.NewString(),
		key: key,
		hub: h,
		fn:  fn,
	}
	h.listeners.Compute(key, func(subs []*Subscription, _ bool) ([]*Subscription, bool) {
		return append(slices.Clip(subs), sub), false
	})
	return sub
}

// listener slices are never modified in place, so a queued
// notification keeps the one it captured.
func (h *SubscriptionHub) unsubscribe(sub *Subscription) {
	h.listeners.Compute(sub.key, func(subs []*Subscription, loaded bool) ([]*Subscription, bool) {
		if !loaded {
			return nil, true
		}
		rest := slices.DeleteFunc(slices.Clone(subs), func(s *Subscription) bool {
			return s == sub
		})
		return rest, len(rest) == 0
	})
}

func (h *SubscriptionHub) unsubscribeAll(key string) {
	h.listeners.Delete(key)
}

// forget drops every listener of an object that left the pool.
func (h *SubscriptionHub) forget(objectID string) {
	h.listeners.Delete(objectID)
	h.listeners.Delete(lifecycleKey(objectID))
}

func (h *SubscriptionHub) listenerCount(key string) int {
	subs, _ := h.listeners.Load(key)
	return len(subs)
}

// emit queues a data update of an object; it never blocks the caller.
func (h *SubscriptionHub) emit(objectID string, update any) {
	h.dispatch(objectID, objectID, update)
}

func (h *SubscriptionHub) emitLifecycle(objectID string, event LifecycleEvent) {
	h.dispatch(objectID, lifecycleKey(objectID), event)
}

func (h *SubscriptionHub) emitSync(event ObjectsEvent) {
	h.dispatch(syncEventsKey, syncEventsKey, event)
}

func (h *SubscriptionHub) dispatch(objectID, key string, update any) {
	if isNoop(update) {
		return
	}
	subs, _ := h.listeners.Load(key)
	if len(subs) == 0 {
		return
	}
	n := notification{objectID: objectID, subs: subs, update: update, done: make(chan struct{})}
	h.pending.Store(objectID, n.done)
	shard := h.shards[xxhash.Sum64String(objectID)%uint64(len(h.shards))]
	if err := shard.Push(n); err != nil {
		h.settle(n)
		h.log.Debug("update dropped", "objectId", objectID, "err", err)
	}
}

// awaitIdle blocks until every notification emitted for the object so
// far has been delivered. Shards are FIFO, so waiting for the newest
// one is enough.
func (h *SubscriptionHub) awaitIdle(objectID string) {
	if done, ok := h.pending.Load(objectID); ok {
		<-done
	}
}

func (h *SubscriptionHub) settle(n notification) {
	close(n.done)
	h.pending.Compute(n.objectID, func(done chan struct{}, loaded bool) (chan struct{}, bool) {
		return done, !loaded || done == n.done
	})
}

func isNoop(update any) bool {
	switch u := update.(type) {
	case nil:
		return true
	case MapUpdate:
		return len(u) == 0
	case CounterUpdate:
		return u.Amount == 0
	}
	return false
}

func (h *SubscriptionHub) run(shard *utils.Mailbox[notification]) {
	defer h.wg.Done()
	for {
		n, err := shard.Pop(context.Background())
		if err != nil {
			return
		}
		for _, sub := range n.subs {
			h.call(sub, n.update)
		}
		h.settle(n)
	}
}

func (h *SubscriptionHub) call(sub *Subscription, update any) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("listener panicked", "key", sub.key, "subscription", sub.id, "panic", r)
		}
	}()
	sub.fn(update)
}

// close delivers what is already queued and stops the workers.
func (h *SubscriptionHub) close() {
	for _, shard := range h.shards {
		_ = shard.Close()
	}
	h.wg.Wait()
	h.listeners.Clear()
}
