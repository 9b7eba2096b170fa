package protocol

import (
	"bytes"
	"math"
	"time"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/pkg/errors"
)

// ObjectData is the value stored under a map key: either a reference
// to another object or a single primitive.
type ObjectData struct {
	ObjectID string   `json:"objectId,omitempty"`
	String   *string  `json:"string,omitempty"`
	Number   *float64 `json:"number,omitempty"`
	Boolean  *bool    `json:"boolean,omitempty"`
	Bytes    []byte   `json:"bytes,omitempty"`
}

func (d *ObjectData) IsEmpty() bool {
	return d.ObjectID == "" && d.String == nil && d.Number == nil && d.Boolean == nil && d.Bytes == nil
}

func (d *ObjectData) Equal(b *ObjectData) bool {
	return d.ObjectID == b.ObjectID &&
		eqPtr(d.String, b.String) &&
		eqPtr(d.Number, b.Number) &&
		eqPtr(d.Boolean, b.Boolean) &&
		(d.Bytes == nil) == (b.Bytes == nil) && bytes.Equal(d.Bytes, b.Bytes)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type MapSemantics int

const MapSemanticsLWW MapSemantics = 0

// MapEntry is one key of a materialized or initial map state.
type MapEntry struct {
	Tombstone  bool       `json:"tombstone,omitempty"`
	Timeserial string     `json:"timeserial,omitempty"`
	Data       ObjectData `json:"data"`
}

type ObjectsMap struct {
	Semantics MapSemantics        `json:"semantics"`
	Entries   map[string]MapEntry `json:"entries,omitempty"`
}

type ObjectsCounter struct {
	Count *float64 `json:"count,omitempty"`
}

type MapOp struct {
	Key  string      `json:"key"`
	Data *ObjectData `json:"data,omitempty"`
}

type CounterOp struct {
	Amount *float64 `json:"amount,omitempty"`
}

// ObjectOperation is a single mutation of one object.
type ObjectOperation struct {
	Action    Action          `json:"action"`
	ObjectID  string          `json:"objectId"`
	MapOp     *MapOp          `json:"mapOp,omitempty"`
	CounterOp *CounterOp      `json:"counterOp,omitempty"`
	Map       *ObjectsMap     `json:"map,omitempty"`
	Counter   *ObjectsCounter `json:"counter,omitempty"`

	Nonce        string `json:"nonce,omitempty"`
	InitialValue string `json:"initialValue,omitempty"`
}

// Validate checks that the operation carries every field its action
// needs.
func (op *ObjectOperation) Validate() error {
	if !op.Action.Known() {
		return errors.Wrapf(liveobjects_errors.ErrUnknownAction, "action %d", int(op.Action))
	}
	if op.ObjectID == "" {
		return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s: no objectId", op.Action)
	}
	switch op.Action {
	case ActionMapSet:
		if op.MapOp == nil || op.MapOp.Data == nil {
			return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s %s: no mapOp data", op.Action, op.ObjectID)
		}
	case ActionMapRemove:
		if op.MapOp == nil {
			return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s %s: no mapOp", op.Action, op.ObjectID)
		}
	case ActionCounterInc:
		if op.CounterOp == nil || op.CounterOp.Amount == nil {
			return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s %s: no amount", op.Action, op.ObjectID)
		}
		if a := *op.CounterOp.Amount; math.IsNaN(a) || math.IsInf(a, 0) {
			return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s %s: amount %v", op.Action, op.ObjectID, a)
		}
	case ActionCounterCreate:
		if op.Counter != nil && op.Counter.Count != nil {
			if c := *op.Counter.Count; math.IsNaN(c) || math.IsInf(c, 0) {
				return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "%s %s: count %v", op.Action, op.ObjectID, c)
			}
		}
	case ActionMapCreate, ActionObjectDelete:
	}
	return nil
}

// ObjectState is the materialized state of one object as delivered by
// an OBJECT_SYNC sequence.
type ObjectState struct {
	ObjectID        string            `json:"objectId"`
	SiteTimeserials map[string]string `json:"siteTimeserials"`
	Tombstone       bool              `json:"tombstone,omitempty"`
	CreateOp        *ObjectOperation  `json:"createOp,omitempty"`
	Map             *ObjectsMap       `json:"map,omitempty"`
	Counter         *ObjectsCounter   `json:"counter,omitempty"`
}

func (st *ObjectState) Validate() error {
	if st.ObjectID == "" {
		return errors.Wrap(liveobjects_errors.ErrMalformedMessage, "object state: no objectId")
	}
	if st.Map != nil && st.Counter != nil {
		return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "object state %s: both map and counter", st.ObjectID)
	}
	if st.Counter != nil && st.Counter.Count != nil {
		if c := *st.Counter.Count; math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.Wrapf(liveobjects_errors.ErrMalformedMessage, "object state %s: count %v", st.ObjectID, c)
		}
	}
	return nil
}

// OperationMessage is a decoded OBJECT message: operations that share
// one serial assigned by the originating site.
type OperationMessage struct {
	Serial          string            `json:"serial,omitempty"`
	SiteCode        string            `json:"siteCode,omitempty"`
	SerialTimestamp *time.Time        `json:"serialTimestamp,omitempty"`
	Operations      []ObjectOperation `json:"operations"`
}

// SyncMessage is one decoded OBJECT_SYNC message; SyncSerial has the
// form <sequence>:<cursor> and is empty for a single-message sync.
type SyncMessage struct {
	SyncSerial string        `json:"syncSerial,omitempty"`
	State      []ObjectState `json:"state"`
}

// ConnectionDetails carries the connection-level parameters the engine
// cares about; the grace period is in seconds.
type ConnectionDetails struct {
	ObjectsGCGracePeriod *float64 `json:"objectsGCGracePeriod,omitempty"`
}

func (cd ConnectionDetails) GCGracePeriod() (period time.Duration, ok bool) {
	if cd.ObjectsGCGracePeriod == nil {
		return 0, false
	}
	secs := *cd.ObjectsGCGracePeriod
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
