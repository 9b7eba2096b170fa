package liveobjects

import (
	"context"
	"encoding/json"
	"math"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// initialValue is what a new object id is derived from.
type initialValue struct {
	Map     *protocol.ObjectsMap     `json:"map,omitempty"`
	Counter *protocol.ObjectsCounter `json:"counter,omitempty"`
}

// CreateMap publishes a MAP_CREATE and returns the new map right away,
// already holding entries.
func (o *Objects) CreateMap(ctx context.Context, entries map[string]Value) (*LiveMap, error) {
	initial := &protocol.ObjectsMap{
		Semantics: protocol.MapSemanticsLWW,
		Entries:   make(map[string]protocol.MapEntry, len(entries)),
	}
	for key, v := range entries {
		data, err := v.objectData()
		if err != nil {
			return nil, errors.Wrapf(err, "create map: key %s", key)
		}
		initial.Entries[key] = protocol.MapEntry{Data: data}
	}
	op, err := o.createOperation(rdx.TypeMap, initialValue{Map: initial})
	if err != nil {
		return nil, err
	}
	if err := o.publish(ctx, op); err != nil {
		return nil, err
	}

	// the echo of the create may already have built the object
	fresh := newLiveMap(o, op.ObjectID)
	fresh.seed(initial)
	obj, _ := o.pool.adopt(fresh)
	m, ok := obj.(*LiveMap)
	if !ok {
		return nil, errors.Wrapf(liveobjects_errors.ErrObjectDeleted, "create map %s", op.ObjectID)
	}
	return m, nil
}

// CreateCounter publishes a COUNTER_CREATE and returns the new counter
// right away, already holding count.
func (o *Objects) CreateCounter(ctx context.Context, count float64) (*LiveCounter, error) {
	if math.IsNaN(count) || math.IsInf(count, 0) {
		return nil, errors.Wrapf(liveobjects_errors.ErrInvalidAmount, "create counter with %v", count)
	}
	initial := &protocol.ObjectsCounter{Count: &count}
	op, err := o.createOperation(rdx.TypeCounter, initialValue{Counter: initial})
	if err != nil {
		return nil, err
	}
	if err := o.publish(ctx, op); err != nil {
		return nil, err
	}

	fresh := newLiveCounter(o, op.ObjectID)
	fresh.mergeInitialData(initial)
	obj, _ := o.pool.adopt(fresh)
	c, ok := obj.(*LiveCounter)
	if !ok {
		return nil, errors.Wrapf(liveobjects_errors.ErrObjectDeleted, "create counter %s", op.ObjectID)
	}
	return c, nil
}

func (o *Objects) createOperation(t rdx.ObjectType, value initialValue) (op protocol.ObjectOperation, err error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return op, errors.Wrapf(err, "create %s", t)
	}
	nonce := uuid.NewString()
	op = protocol.ObjectOperation{
		ObjectID:     rdx.NewObjectID(t, string(encoded), nonce, o.opts.Clock.Now()),
		Map:          value.Map,
		Counter:      value.Counter,
		Nonce:        nonce,
		InitialValue: string(encoded),
	}
	if t == rdx.TypeCounter {
		op.Action = protocol.ActionCounterCreate
	} else {
		op.Action = protocol.ActionMapCreate
	}
	return op, nil
}
