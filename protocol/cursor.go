package protocol

import (
	"strings"

	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/pkg/errors"
)

// SyncCursor is a parsed OBJECT_SYNC serial.
type SyncCursor struct {
	SequenceID string
	Cursor     string
}

func ParseSyncCursor(syncSerial string) (SyncCursor, error) {
	seq, cursor, ok := strings.Cut(syncSerial, ":")
	if !ok || seq == "" {
		return SyncCursor{}, errors.Wrapf(liveobjects_errors.ErrBadSyncSerial, "%q", syncSerial)
	}
	return SyncCursor{SequenceID: seq, Cursor: cursor}, nil
}

// IsEndOfSequence is true for the last message of a sync sequence.
func (c SyncCursor) IsEndOfSequence() bool {
	return c.Cursor == ""
}
