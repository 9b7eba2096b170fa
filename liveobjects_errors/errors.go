// Provides common liveobjects errors definitions.
package liveobjects_errors

import "errors"

var (
	ErrClosed            = errors.New("liveobjects: engine closed")
	ErrTypeMismatch      = errors.New("liveobjects: value type mismatch")
	ErrInvalidAmount     = errors.New("liveobjects: amount must be a finite number")
	ErrInvalidValue      = errors.New("liveobjects: value can not be stored in a map")
	ErrObjectDeleted     = errors.New("liveobjects: object is deleted")
	ErrUnknownObjectType = errors.New("liveobjects: unknown object type")

	ErrMalformedMessage = errors.New("liveobjects: malformed object message")
	ErrUnknownAction    = errors.New("liveobjects: unknown operation action")
	ErrBadSyncSerial    = errors.New("liveobjects: bad sync serial")
)
