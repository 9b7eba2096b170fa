package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "MAP_SET", ActionMapSet.String())
	assert.Equal(t, "OBJECT_DELETE", ActionObjectDelete.String())
	assert.Equal(t, "UNKNOWN(42)", Action(42).String())
	assert.False(t, Action(-1).Known())
}

func TestObjectOperation_Validate(t *testing.T) {
	valid := []ObjectOperation{
		{Action: ActionMapCreate, ObjectID: "map:a@1"},
		{Action: ActionMapSet, ObjectID: "root", MapOp: &MapOp{Key: "k", Data: &ObjectData{String: ptr("v")}}},
		{Action: ActionMapRemove, ObjectID: "root", MapOp: &MapOp{Key: "k"}},
		{Action: ActionCounterCreate, ObjectID: "counter:a@1"},
		{Action: ActionCounterInc, ObjectID: "counter:a@1", CounterOp: &CounterOp{Amount: ptr(-1.5)}},
		{Action: ActionObjectDelete, ObjectID: "counter:a@1"},
	}
	for _, op := range valid {
		assert.NoError(t, op.Validate(), op.Action.String())
	}

	malformed := []ObjectOperation{
		{Action: ActionMapSet, ObjectID: ""},
		{Action: ActionMapSet, ObjectID: "root"},
		{Action: ActionMapSet, ObjectID: "root", MapOp: &MapOp{Key: "k"}},
		{Action: ActionMapRemove, ObjectID: "root"},
		{Action: ActionCounterInc, ObjectID: "counter:a@1"},
		{Action: ActionCounterInc, ObjectID: "counter:a@1", CounterOp: &CounterOp{}},
		{Action: ActionCounterInc, ObjectID: "counter:a@1", CounterOp: &CounterOp{Amount: ptr(math.NaN())}},
		{Action: ActionCounterCreate, ObjectID: "counter:a@1", Counter: &ObjectsCounter{Count: ptr(math.Inf(1))}},
	}
	for _, op := range malformed {
		assert.ErrorIs(t, op.Validate(), liveobjects_errors.ErrMalformedMessage, op.Action.String())
	}

	unknown := ObjectOperation{Action: 17, ObjectID: "root"}
	assert.ErrorIs(t, unknown.Validate(), liveobjects_errors.ErrUnknownAction)
}

func TestObjectState_Validate(t *testing.T) {
	assert.NoError(t, (&ObjectState{ObjectID: "root", Map: &ObjectsMap{}}).Validate())
	assert.ErrorIs(t, (&ObjectState{}).Validate(), liveobjects_errors.ErrMalformedMessage)
	both := ObjectState{ObjectID: "x", Map: &ObjectsMap{}, Counter: &ObjectsCounter{}}
	assert.ErrorIs(t, both.Validate(), liveobjects_errors.ErrMalformedMessage)
}

func TestObjectData_Equal(t *testing.T) {
	a := ObjectData{String: ptr("x")}
	b := ObjectData{String: ptr("x")}
	c := ObjectData{String: ptr("y")}
	assert.True(t, a.Equal(&b))
	assert.False(t, a.Equal(&c))
	assert.False(t, a.Equal(&ObjectData{}))
	assert.True(t, (&ObjectData{}).IsEmpty())
	assert.False(t, (&ObjectData{ObjectID: "root"}).IsEmpty())
	assert.False(t, (&ObjectData{Bytes: []byte{}}).Equal(&ObjectData{}))
}

func TestParseSyncCursor(t *testing.T) {
	c, err := ParseSyncCursor("seq1:cursor1")
	assert.NoError(t, err)
	assert.Equal(t, "seq1", c.SequenceID)
	assert.Equal(t, "cursor1", c.Cursor)
	assert.False(t, c.IsEndOfSequence())

	c, err = ParseSyncCursor("seq1:")
	assert.NoError(t, err)
	assert.True(t, c.IsEndOfSequence())

	for _, bad := range []string{"", "seq1", ":cursor"} {
		_, err = ParseSyncCursor(bad)
		assert.ErrorIs(t, err, liveobjects_errors.ErrBadSyncSerial, bad)
	}
}

func TestConnectionDetails_GCGracePeriod(t *testing.T) {
	_, ok := ConnectionDetails{}.GCGracePeriod()
	assert.False(t, ok)
	period, ok := ConnectionDetails{ObjectsGCGracePeriod: ptr(1.5)}.GCGracePeriod()
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, period)
	_, ok = ConnectionDetails{ObjectsGCGracePeriod: ptr(-1.0)}.GCGracePeriod()
	assert.False(t, ok)
}
