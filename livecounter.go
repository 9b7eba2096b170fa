package liveobjects

import (
	"context"
	"iter"
	"math"
	"time"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	"github.com/pkg/errors"
)

// LiveCounter is a shared number changed by increments from any site.
type LiveCounter struct {
	liveObject
	value float64
}

func newLiveCounter(o *Objects, id string) *LiveCounter {
	c := &LiveCounter{}
	c.init(o, id)
	return c
}

func (c *LiveCounter) Type() rdx.ObjectType {
	return rdx.TypeCounter
}

func (c *LiveCounter) Value() float64 {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.value
}

// Increment publishes a COUNTER_INC. The amount must be finite.
func (c *LiveCounter) Increment(ctx context.Context, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errors.Wrapf(liveobjects_errors.ErrInvalidAmount, "increment %s by %v", c.id, amount)
	}
	if c.IsTombstoned() {
		return errors.Wrapf(liveobjects_errors.ErrObjectDeleted, "increment %s", c.id)
	}
	op := protocol.ObjectOperation{
		Action:    protocol.ActionCounterInc,
		ObjectID:  c.id,
		CounterOp: &protocol.CounterOp{Amount: &amount},
	}
	return c.objects.publish(ctx, op)
}

func (c *LiveCounter) Decrement(ctx context.Context, amount float64) error {
	return c.Increment(ctx, -amount)
}

func (c *LiveCounter) Subscribe(fn func(CounterUpdate)) *Subscription {
	return c.objects.hub.subscribe(c.id, func(u any) {
		fn(u.(CounterUpdate))
	})
}

func (c *LiveCounter) UnsubscribeAll() {
	c.objects.hub.unsubscribeAll(c.id)
}

func (c *LiveCounter) Updates(ctx context.Context) iter.Seq[CounterUpdate] {
	return streamUpdates(ctx, c.Subscribe)
}

func (c *LiveCounter) applyOperation(op *protocol.ObjectOperation, mc *messageContext) (any, outcome) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.tombstone {
		return nil, outTombstoned
	}
	if !mc.admit(&c.liveObject) {
		return nil, outStale
	}
	switch op.Action {
	case protocol.ActionCounterCreate:
		if c.createOperationIsMerged {
			return nil, outAlreadyMerged
		}
		return c.mergeInitialData(op.Counter), applied
	case protocol.ActionCounterInc:
		return c.add(*op.CounterOp.Amount), applied
	case protocol.ActionObjectDelete:
		c.markTombstone(mc.at)
		return c.add(-c.value), applied
	}
	return nil, outTypeMismatch
}

// mergeInitialData must be called with lock held. The created count
// adds to whatever increments arrived before the create.
func (c *LiveCounter) mergeInitialData(initial *protocol.ObjectsCounter) CounterUpdate {
	c.createOperationIsMerged = true
	if initial == nil || initial.Count == nil {
		return CounterUpdate{}
	}
	return c.add(*initial.Count)
}

func (c *LiveCounter) add(amount float64) CounterUpdate {
	c.value += amount
	return CounterUpdate{Amount: amount}
}

func (c *LiveCounter) clear() any {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.resetState(nil)
	return c.add(-c.value)
}

func (c *LiveCounter) overrideWithState(st *protocol.ObjectState, now time.Time) any {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.tombstone {
		return nil
	}
	prev := c.value
	c.resetState(st.SiteTimeserials)
	c.value = 0
	if st.Tombstone {
		c.markTombstone(now)
		return CounterUpdate{Amount: -prev}
	}
	if st.Counter != nil && st.Counter.Count != nil {
		c.value = *st.Counter.Count
	}
	if st.CreateOp != nil {
		c.mergeInitialData(st.CreateOp.Counter)
	}
	return CounterUpdate{Amount: c.value - prev}
}

func (c *LiveCounter) collectEntries(time.Time, time.Duration) int {
	return 0
}
