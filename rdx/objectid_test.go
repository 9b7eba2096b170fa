package rdx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectTypeOf(t *testing.T) {
	cases := map[string]ObjectType{
		"root":             TypeMap,
		"map:abc@1":        TypeMap,
		"counter:abc@1":    TypeCounter,
		"counter:x:y@1234": TypeCounter,
	}
	for id, want := range cases {
		got, ok := ObjectTypeOf(id)
		assert.True(t, ok, id)
		assert.Equal(t, want, got, id)
	}
	for _, id := range []string{"", "abc", "list:abc@1", ":abc"} {
		_, ok := ObjectTypeOf(id)
		assert.False(t, ok, id)
	}
}

func TestNewObjectID(t *testing.T) {
	at := time.UnixMilli(1726589520123)
	id := NewObjectID(TypeCounter, `{"counter":{"count":1}}`, "nonce", at)
	assert.True(t, strings.HasPrefix(id, "counter:"))
	assert.True(t, strings.HasSuffix(id, "@1726589520123"))
	assert.NotContains(t, id, "=")
	assert.NotContains(t, id, "+")
	assert.NotContains(t, id, "/")

	same := NewObjectID(TypeCounter, `{"counter":{"count":1}}`, "nonce", at)
	assert.Equal(t, id, same)
	other := NewObjectID(TypeCounter, `{"counter":{"count":1}}`, "other", at)
	assert.NotEqual(t, id, other)

	kind, ok := ObjectTypeOf(id)
	assert.True(t, ok)
	assert.Equal(t, TypeCounter, kind)
}
