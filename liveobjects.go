package liveobjects

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drpcorg/liveobjects/host"
	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	"github.com/drpcorg/liveobjects/rdx"
	"github.com/drpcorg/liveobjects/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultGCInterval      = 5 * time.Minute
	DefaultGCGracePeriod   = 24 * time.Hour
	DefaultGraveyardSize   = 10000
	DefaultDispatchWorkers = 4
)

type Options struct {
	// Channel names the engine in logs and metrics.
	Channel string
	Logger  utils.Logger
	Clock   utils.Clock

	GCInterval time.Duration
	// GCGracePeriod overrides the grace period the server announces.
	GCGracePeriod time.Duration

	GraveyardSize   int
	DispatchWorkers int

	// Registerer receives the engine metrics; nil skips registration.
	Registerer prometheus.Registerer
}

func (o *Options) SetDefaults() {
	if o.Channel == "" {
		o.Channel = "default"
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelWarn)
	}
	if o.Clock == nil {
		o.Clock = utils.SystemClock{}
	}
	if o.GCInterval == 0 {
		o.GCInterval = DefaultGCInterval
	}
	if o.GraveyardSize <= 0 {
		o.GraveyardSize = DefaultGraveyardSize
	}
	if o.DispatchWorkers <= 0 {
		o.DispatchWorkers = DefaultDispatchWorkers
	}
}

// Objects is the object tree of one channel. Inbound messages are
// applied one at a time under lock; reads go straight to the objects.
//
// Listeners may read objects and publish local writes, but must not
// call the inbound handlers: those wait for pending deliveries.
type Objects struct {
	host host.Host
	opts Options
	log  utils.Logger
	ctx  context.Context

	pool *ObjectsPool
	hub  *SubscriptionHub

	lock     sync.Mutex
	closed   bool
	sequence *syncSequence

	syncState   atomic.Int32
	syncLock    sync.Mutex
	synced      chan struct{}
	serverGrace atomic.Pointer[time.Duration]

	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(h host.Host, opts Options) *Objects {
	if opts.Logger == nil && h != nil && h.Logger() != nil {
		opts.Logger = h.Logger()
	}
	opts.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Objects{
		host:   h,
		opts:   opts,
		log:    opts.Logger,
		ctx:    utils.WithDefaultArgs(context.Background(), "channel", opts.Channel),
		synced: make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	o.pool = newObjectsPool(o, opts.GraveyardSize)
	o.hub = newSubscriptionHub(opts.DispatchWorkers, opts.Logger)
	if opts.Registerer != nil {
		registerMetrics(opts.Registerer, o.log)
		if err := opts.Registerer.Register(NewPoolCollector(opts.Channel, o.pool)); err != nil {
			o.log.WarnCtx(o.ctx, "pool collector not registered", "err", err)
		}
	}
	o.wg.Add(1)
	go o.runGC(ctx)
	return o
}

func (o *Objects) Close() error {
	o.lock.Lock()
	if o.closed {
		o.lock.Unlock()
		return liveobjects_errors.ErrClosed
	}
	o.closed = true
	close(o.done)
	if o.sequence != nil {
		BufferedOperations.Sub(float64(len(o.sequence.buffered)))
		o.sequence = nil
	}
	o.lock.Unlock()

	o.cancel()
	o.wg.Wait()
	o.hub.close()
	return nil
}

// GetRoot waits for the first sync to finish and returns the root map.
func (o *Objects) GetRoot(ctx context.Context) (*LiveMap, error) {
	if err := o.WaitSync(ctx); err != nil {
		return nil, err
	}
	return o.pool.Root(), nil
}

// WaitSync blocks until no sync sequence is in progress.
func (o *Objects) WaitSync(ctx context.Context) error {
	select {
	case <-o.done:
		return liveobjects_errors.ErrClosed
	default:
	}
	o.syncLock.Lock()
	synced := o.synced
	o.syncLock.Unlock()
	select {
	case <-synced:
		return nil
	case <-o.done:
		return liveobjects_errors.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Objects) SyncState() SyncState {
	return SyncState(o.syncState.Load())
}

// OnSyncEvent registers fn to run whenever a sync starts or ends.
func (o *Objects) OnSyncEvent(fn func(ObjectsEvent)) *Subscription {
	return o.hub.subscribe(syncEventsKey, func(u any) {
		fn(u.(ObjectsEvent))
	})
}

// OnAttached is called by the host on every channel attach. Without
// objects on the channel the tree is reset to an empty root; otherwise
// a sync is expected and operations are buffered until it ends.
func (o *Objects) OnAttached(hasObjects bool) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	o.log.DebugCtx(o.ctx, "attached", "hasObjects", hasObjects, "syncState", o.SyncState())
	if hasObjects {
		o.beginSync("", true)
		return
	}
	o.abandonSync("reset")
	o.enterSyncing()
	o.resetPool()
	o.finishSync()
}

// resetPool must be called with lock held.
func (o *Objects) resetPool() {
	for _, obj := range o.pool.snapshot() {
		if obj.ID() == rdx.RootID {
			o.hub.awaitIdle(obj.ID())
			o.hub.emit(obj.ID(), obj.clear())
			continue
		}
		o.pool.forget(obj.ID())
		o.hub.forget(obj.ID())
	}
}

func (o *Objects) OnConnectionDetails(details protocol.ConnectionDetails) {
	if grace, ok := details.GCGracePeriod(); ok {
		o.serverGrace.Store(&grace)
	} else {
		o.serverGrace.Store(nil)
	}
}

// GCGracePeriod is how long tombstones are kept before collection.
func (o *Objects) GCGracePeriod() time.Duration {
	if o.opts.GCGracePeriod > 0 {
		return o.opts.GCGracePeriod
	}
	if grace := o.serverGrace.Load(); grace != nil {
		return *grace
	}
	return DefaultGCGracePeriod
}

func (o *Objects) publish(ctx context.Context, op protocol.ObjectOperation) error {
	select {
	case <-o.done:
		return liveobjects_errors.ErrClosed
	default:
	}
	msg := &protocol.OperationMessage{Operations: []protocol.ObjectOperation{op}}
	if err := o.host.Publish(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish %s %s", op.Action, op.ObjectID)
	}
	return nil
}
