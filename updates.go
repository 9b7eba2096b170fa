package liveobjects

import (
	"context"
	"iter"

	"github.com/drpcorg/liveobjects/utils"
)

// streamUpdates turns a listener subscription into a pull iterator.
// The subscription lives as long as one range loop over the result.
func streamUpdates[T any](ctx context.Context, subscribe func(func(T)) *Subscription) iter.Seq[T] {
	return func(yield func(T) bool) {
		inbox := utils.NewMailbox[T]()
		sub := subscribe(func(update T) {
			_ = inbox.Push(update)
		})
		defer sub.Unsubscribe()
		defer func() {
			_ = inbox.Close()
		}()
		for {
			update, err := inbox.Pop(ctx)
			if err != nil {
				return
			}
			if !yield(update) {
				return
			}
		}
	}
}
