package host

import (
	"context"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/utils"
)

// Host is the channel transport the engine runs on top of. The engine
// only ever asks it to publish locally originated operations; inbound
// messages are pushed into the engine by the host itself.
type Host interface {
	Publish(ctx context.Context, msg *protocol.OperationMessage) error
	Logger() utils.Logger
}
