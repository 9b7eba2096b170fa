package protocol

import "strconv"

// Action is the discriminator of an object operation. Values match the
// numeric wire encoding.
type Action int

const (
	ActionMapCreate Action = iota
	ActionMapSet
	ActionMapRemove
	ActionCounterCreate
	ActionCounterInc
	ActionObjectDelete
)

var actionNames = [...]string{
	ActionMapCreate:     "MAP_CREATE",
	ActionMapSet:        "MAP_SET",
	ActionMapRemove:     "MAP_REMOVE",
	ActionCounterCreate: "COUNTER_CREATE",
	ActionCounterInc:    "COUNTER_INC",
	ActionObjectDelete:  "OBJECT_DELETE",
}

func (a Action) Known() bool {
	return a >= ActionMapCreate && a <= ActionObjectDelete
}

func (a Action) String() string {
	if !a.Known() {
		return "UNKNOWN(" + strconv.Itoa(int(a)) + ")"
	}
	return actionNames[a]
}
