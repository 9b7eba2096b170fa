package liveobjects

import (
	"testing"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Accessors(t *testing.T) {
	s, err := StringValue("x").AsString()
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	n, err := NumberValue(1.5).AsNumber()
	require.NoError(t, err)
	assert.Equal(t, 1.5, n)

	b, err := BoolValue(true).AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	raw, err := BytesValue([]byte{1, 2}).AsBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, raw)

	_, err = StringValue("x").AsNumber()
	assert.ErrorIs(t, err, liveobjects_errors.ErrTypeMismatch)
	_, err = Value{}.AsMap()
	assert.ErrorIs(t, err, liveobjects_errors.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "want map, got absent")

	assert.True(t, Value{}.IsAbsent())
	assert.True(t, MapValue(nil).IsAbsent())
	assert.Equal(t, ValueCounter, CounterValue(&LiveCounter{}).Kind())
}

func TestValue_Equal(t *testing.T) {
	c1, c2 := &LiveCounter{}, &LiveCounter{}
	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.False(t, StringValue("a").Equal(BytesValue([]byte("a"))))
	assert.True(t, BytesValue([]byte("a")).Equal(BytesValue([]byte("a"))))
	assert.True(t, CounterValue(c1).Equal(CounterValue(c1)))
	assert.False(t, CounterValue(c1).Equal(CounterValue(c2)))
	assert.True(t, Value{}.Equal(Value{}))
}

func TestValue_ObjectData(t *testing.T) {
	m := &LiveMap{}
	m.id = "map:x@1"
	data, err := MapValue(m).objectData()
	require.NoError(t, err)
	assert.Equal(t, "map:x@1", data.ObjectID)

	src := []byte{7}
	data, err = BytesValue(src).objectData()
	require.NoError(t, err)
	src[0] = 8
	assert.Equal(t, []byte{7}, data.Bytes)

	_, err = Value{}.objectData()
	assert.ErrorIs(t, err, liveobjects_errors.ErrInvalidValue)
}
