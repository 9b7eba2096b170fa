package testutils

import (
	"context"
	"log/slog"
	"sync"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/utils"
)

// RecordingHost keeps every published message instead of sending it.
type RecordingHost struct {
	lock      sync.Mutex
	published []*protocol.OperationMessage
	log       utils.Logger

	// Err, when set, is returned by Publish and nothing is recorded.
	Err error
}

func NewRecordingHost() *RecordingHost {
	return &RecordingHost{log: utils.NewDefaultLogger(slog.LevelError)}
}

func (h *RecordingHost) Publish(ctx context.Context, msg *protocol.OperationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.Err != nil {
		return h.Err
	}
	h.published = append(h.published, msg)
	return nil
}

func (h *RecordingHost) Logger() utils.Logger {
	return h.log
}

func (h *RecordingHost) Published() []*protocol.OperationMessage {
	h.lock.Lock()
	defer h.lock.Unlock()
	return append([]*protocol.OperationMessage(nil), h.published...)
}

// Last returns the most recently published operation.
func (h *RecordingHost) Last() (op protocol.ObjectOperation, ok bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if len(h.published) == 0 {
		return op, false
	}
	msg := h.published[len(h.published)-1]
	if len(msg.Operations) == 0 {
		return op, false
	}
	return msg.Operations[0], true
}
