package liveobjects

import (
	"context"
	"time"
)

func (o *Objects) runGC(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.opts.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CollectGarbage()
		}
	}
}

// CollectGarbage removes tombstoned objects and map entries whose
// grace period has passed. It runs on a timer but may be called at
// any time.
func (o *Objects) CollectGarbage() {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	start := time.Now()
	now := o.opts.Clock.Now()
	grace := o.GCGracePeriod()
	objects, entries := 0, 0
	for _, obj := range o.pool.snapshot() {
		tombstoned, at := obj.base().tombstoneInfo()
		if tombstoned && now.Sub(at) >= grace {
			o.pool.remove(obj.ID(), now)
			o.hub.forget(obj.ID())
			objects++
			continue
		}
		if !tombstoned {
			entries += obj.collectEntries(now, grace)
		}
	}
	GCRemoved.WithLabelValues("object").Add(float64(objects))
	GCRemoved.WithLabelValues("entry").Add(float64(entries))
	GCDuration.Observe(time.Since(start).Seconds())
	if objects+entries > 0 {
		o.log.DebugCtx(o.ctx, "garbage collected", "objects", objects, "entries", entries, "grace", grace)
	}
}
