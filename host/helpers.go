package host

import (
	"context"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/utils"
)

type PublishFunc func(ctx context.Context, msg *protocol.OperationMessage) error

type funcHost struct {
	publish PublishFunc
	log     utils.Logger
}

// FromFunc wraps a bare publish function into a Host; log may be nil.
func FromFunc(publish PublishFunc, log utils.Logger) Host {
	return &funcHost{publish: publish, log: log}
}

func (h *funcHost) Publish(ctx context.Context, msg *protocol.OperationMessage) error {
	return h.publish(ctx, msg)
}

func (h *funcHost) Logger() utils.Logger {
	return h.log
}
