package rdx

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// ObjectType is the kind of a live object, encoded as the prefix of
// its id: [type]:[hash]@[millis]
type ObjectType string

const (
	TypeMap     ObjectType = "map"
	TypeCounter ObjectType = "counter"
)

// RootID is the id of the root map; it always exists.
const RootID = "root"

func (t ObjectType) Valid() bool {
	return t == TypeMap || t == TypeCounter
}

// ObjectTypeOf infers the object kind from the id prefix.
func ObjectTypeOf(id string) (ObjectType, bool) {
	if id == RootID {
		return TypeMap, true
	}
	prefix, _, ok := strings.Cut(id, ":")
	if !ok {
		return "", false
	}
	t := ObjectType(prefix)
	return t, t.Valid()
}

// NewObjectID derives an object id from the initial value of the
// object and a unique nonce.
func NewObjectID(t ObjectType, initialValue, nonce string, at time.Time) string {
	hash := sha256.Sum256([]byte(initialValue + ":" + nonce))
	return string(t) + ":" + base64.RawURLEncoding.EncodeToString(hash[:]) +
		"@" + strconv.FormatInt(at.UnixMilli(), 10)
}
