package liveobjects

import (
	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	"github.com/pkg/errors"
)

// HandleOperationMessage consumes one OBJECT message. While a sync is
// open the message is buffered and replayed once the sync ends.
func (o *Objects) HandleOperationMessage(msg *protocol.OperationMessage) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	if o.sequence != nil {
		o.sequence.buffered = append(o.sequence.buffered, msg)
		BufferedOperations.Inc()
		return
	}
	o.applyMessage(msg)
}

// applyMessage must be called with lock held.
func (o *Objects) applyMessage(msg *protocol.OperationMessage) {
	var err error
	if msg.Serial == "" || msg.SiteCode == "" {
		err = errors.Wrap(liveobjects_errors.ErrMalformedMessage, "no serial or site code")
	} else if _, perr := rdx.ParseTimeserial(msg.Serial); perr != nil {
		err = errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "serial %q: %v", msg.Serial, perr)
	}
	if err != nil {
		for i := range msg.Operations {
			o.discard(&msg.Operations[i], msg, outMalformed, err)
		}
		return
	}
	mc := newMessageContext(msg, o.opts.Clock.Now())
	for i := range msg.Operations {
		o.applyOperation(&msg.Operations[i], msg, mc)
	}
}

func (o *Objects) applyOperation(op *protocol.ObjectOperation, msg *protocol.OperationMessage, mc *messageContext) {
	if err := op.Validate(); err != nil {
		reason := outMalformed
		if errors.Is(err, liveobjects_errors.ErrUnknownAction) {
			reason = outUnknownAction
		}
		o.discard(op, msg, reason, err)
		return
	}
	if o.pool.buried(op.ObjectID) {
		o.discard(op, msg, outCollected, nil)
		return
	}
	if op.ObjectID == rdx.RootID && op.Action == protocol.ActionObjectDelete {
		o.discard(op, msg, outRoot, nil)
		return
	}
	obj := o.pool.getOrCreateZeroValue(op.ObjectID)
	if obj == nil {
		o.discard(op, msg, outUnknownType,
			errors.Wrapf(liveobjects_errors.ErrUnknownObjectType, "%s", op.ObjectID))
		return
	}
	if !actionFits(op.Action, obj.Type()) {
		o.discard(op, msg, outTypeMismatch,
			errors.Wrapf(liveobjects_errors.ErrTypeMismatch, "%s on %s", op.Action, obj.Type()))
		return
	}
	o.hub.awaitIdle(op.ObjectID)
	update, result := obj.applyOperation(op, mc)
	if result != applied {
		o.discard(op, msg, result, nil)
		return
	}
	OperationsApplied.WithLabelValues(op.Action.String()).Inc()
	o.hub.emit(op.ObjectID, update)
	if op.Action == protocol.ActionObjectDelete {
		o.hub.emitLifecycle(op.ObjectID, ObjectDeleted)
	}
}

func actionFits(action protocol.Action, t rdx.ObjectType) bool {
	switch action {
	case protocol.ActionMapCreate, protocol.ActionMapSet, protocol.ActionMapRemove:
		return t == rdx.TypeMap
	case protocol.ActionCounterCreate, protocol.ActionCounterInc:
		return t == rdx.TypeCounter
	case protocol.ActionObjectDelete:
		return true
	}
	return false
}

// discard accounts for an operation that had no effect. Stale and
// superseded operations are routine and only logged at debug level.
func (o *Objects) discard(op *protocol.ObjectOperation, msg *protocol.OperationMessage, reason outcome, err error) {
	OperationsDiscarded.WithLabelValues(op.Action.String(), string(reason)).Inc()
	args := []any{
		"objectId", op.ObjectID,
		"action", op.Action,
		"serial", msg.Serial,
		"site", msg.SiteCode,
		"reason", string(reason),
	}
	if err != nil {
		o.log.WarnCtx(o.ctx, "operation discarded", append(args, "err", err)...)
		return
	}
	o.log.DebugCtx(o.ctx, "operation discarded", args...)
}
