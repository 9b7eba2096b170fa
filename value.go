package liveobjects

import (
	"bytes"
	"math"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/pkg/errors"
)

type ValueKind byte

const (
	ValueAbsent  ValueKind = 0
	ValueString  ValueKind = 'S'
	ValueNumber  ValueKind = 'N'
	ValueBool    ValueKind = 'B'
	ValueBytes   ValueKind = 'Y'
	ValueMap     ValueKind = 'M'
	ValueCounter ValueKind = 'C'
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueBytes:
		return "bytes"
	case ValueMap:
		return "map"
	case ValueCounter:
		return "counter"
	default:
		return "absent"
	}
}

// Value is what a map key holds: a primitive or a handle to another
// live object. The zero Value is absent.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
	bytes   []byte
	m       *LiveMap
	c       *LiveCounter
}

func StringValue(s string) Value { return Value{kind: ValueString, str: s} }

func NumberValue(n float64) Value { return Value{kind: ValueNumber, num: n} }

func BoolValue(b bool) Value { return Value{kind: ValueBool, boolean: b} }

func BytesValue(b []byte) Value { return Value{kind: ValueBytes, bytes: b} }

func MapValue(m *LiveMap) Value {
	if m == nil {
		return Value{}
	}
	return Value{kind: ValueMap, m: m}
}

func CounterValue(c *LiveCounter) Value {
	if c == nil {
		return Value{}
	}
	return Value{kind: ValueCounter, c: c}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == ValueAbsent }

func (v Value) AsString() (string, error) {
	if v.kind != ValueString {
		return "", mismatch(ValueString, v.kind)
	}
	return v.str, nil
}

func (v Value) AsNumber() (float64, error) {
	if v.kind != ValueNumber {
		return 0, mismatch(ValueNumber, v.kind)
	}
	return v.num, nil
}

func (v Value) AsBool() (bool, error) {
	if v.kind != ValueBool {
		return false, mismatch(ValueBool, v.kind)
	}
	return v.boolean, nil
}

func (v Value) AsBytes() ([]byte, error) {
	if v.kind != ValueBytes {
		return nil, mismatch(ValueBytes, v.kind)
	}
	return v.bytes, nil
}

func (v Value) AsMap() (*LiveMap, error) {
	if v.kind != ValueMap {
		return nil, mismatch(ValueMap, v.kind)
	}
	return v.m, nil
}

func (v Value) AsCounter() (*LiveCounter, error) {
	if v.kind != ValueCounter {
		return nil, mismatch(ValueCounter, v.kind)
	}
	return v.c, nil
}

// Equal compares primitives by value and objects by identity.
func (v Value) Equal(b Value) bool {
	if v.kind != b.kind {
		return false
	}
	switch v.kind {
	case ValueString:
		return v.str == b.str
	case ValueNumber:
		return v.num == b.num
	case ValueBool:
		return v.boolean == b.boolean
	case ValueBytes:
		return bytes.Equal(v.bytes, b.bytes)
	case ValueMap:
		return v.m == b.m
	case ValueCounter:
		return v.c == b.c
	}
	return true
}

func mismatch(want, got ValueKind) error {
	return errors.Wrapf(liveobjects_errors.ErrTypeMismatch, "want %s, got %s", want, got)
}

func (v Value) objectData() (data protocol.ObjectData, err error) {
	switch v.kind {
	case ValueString:
		s := v.str
		data.String = &s
	case ValueNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return data, errors.Wrapf(liveobjects_errors.ErrInvalidValue, "number %v", v.num)
		}
		n := v.num
		data.Number = &n
	case ValueBool:
		b := v.boolean
		data.Boolean = &b
	case ValueBytes:
		data.Bytes = append([]byte{}, v.bytes...)
	case ValueMap:
		data.ObjectID = v.m.ID()
	case ValueCounter:
		data.ObjectID = v.c.ID()
	default:
		return data, errors.Wrapf(liveobjects_errors.ErrInvalidValue, "absent value")
	}
	return data, nil
}
