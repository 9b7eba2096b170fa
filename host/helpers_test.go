package host

import (
	"context"
	"log/slog"
	"testing"

	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFunc(t *testing.T) {
	var got []*protocol.OperationMessage
	log := utils.NewDefaultLogger(slog.LevelError)
	h := FromFunc(func(_ context.Context, msg *protocol.OperationMessage) error {
		got = append(got, msg)
		return nil
	}, log)

	msg := &protocol.OperationMessage{Operations: []protocol.ObjectOperation{{
		Action:   protocol.ActionObjectDelete,
		ObjectID: "map:x@1",
	}}}
	require.NoError(t, h.Publish(context.Background(), msg))
	assert.Equal(t, []*protocol.OperationMessage{msg}, got)
	assert.Same(t, log, h.Logger())
}
