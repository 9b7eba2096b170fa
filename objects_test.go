package liveobjects

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/drpcorg/liveobjects/host"
	"github.com/drpcorg/liveobjects/liveobjects_errors"
	"github.com/drpcorg/liveobjects/protocol"
	testutils "github.com/drpcorg/liveobjects/test_utils"
	"github.com/drpcorg/liveobjects/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestObjects returns an engine that has finished its initial sync
// with an empty root.
func newTestObjects(t *testing.T) (*Objects, *testutils.RecordingHost, *utils.ManualClock) {
	h := testutils.NewRecordingHost()
	clock := utils.NewManualClock(epoch)
	o := New(h, Options{Clock: clock, GCInterval: time.Hour})
	t.Cleanup(func() { _ = o.Close() })
	o.OnAttached(false)
	return o, h, clock
}

func getString(t *testing.T, m *LiveMap, key string) string {
	t.Helper()
	s, err := m.Get(key).AsString()
	require.NoError(t, err, "key %s", key)
	return s
}

func getCounter(t *testing.T, m *LiveMap, key string) *LiveCounter {
	t.Helper()
	c, err := m.Get(key).AsCounter()
	require.NoError(t, err, "key %s", key)
	return c
}

func TestObjects_GetRootWaitsForSync(t *testing.T) {
	o := New(testutils.NewRecordingHost(), Options{})
	defer o.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.GetRoot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *LiveMap)
	go func() {
		root, err := o.GetRoot(context.Background())
		assert.NoError(t, err)
		done <- root
	}()
	o.HandleSyncMessage(testutils.SyncMsg("seq", "", testutils.MapState("root", nil)))
	select {
	case root := <-done:
		assert.Equal(t, "root", root.ID())
	case <-time.After(time.Second):
		t.Fatal("GetRoot did not return after sync")
	}
	assert.Equal(t, SyncIdle, o.SyncState())
}

func TestObjects_AttachStartsSync(t *testing.T) {
	o, _, _ := newTestObjects(t)

	o.OnAttached(true)
	assert.Equal(t, SyncInProgress, o.SyncState())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.WaitSync(ctx), context.DeadlineExceeded)

	o.HandleSyncMessage(testutils.SingleSyncMsg())
	assert.NoError(t, o.WaitSync(context.Background()))
}

func TestObjects_AttachWithoutObjectsResets(t *testing.T) {
	o, _, _ := newTestObjects(t)
	root := o.pool.Root()
	o.HandleOperationMessage(testutils.Message(testutils.Serial("a", 1, 0), "a",
		testutils.CounterCreateOp("counter:c1@1", 5),
		testutils.MapSetOp("root", "c", testutils.RefData("counter:c1@1")),
		testutils.MapSetOp("root", "foo", testutils.StringData("bar")),
	))
	require.Equal(t, 2, root.Size())

	o.OnAttached(false)
	assert.Same(t, root, o.pool.Root())
	assert.Equal(t, 0, root.Size())
	assert.Nil(t, o.pool.get("counter:c1@1"))
	assert.Equal(t, 1, o.pool.Len())
	assert.Empty(t, root.SiteTimeserials())

	// the old site vector is gone, so the same serial applies again
	o.HandleOperationMessage(testutils.Message(testutils.Serial("a", 1, 0), "a",
		testutils.MapSetOp("root", "foo", testutils.StringData("baz")),
	))
	assert.Equal(t, "baz", getString(t, root, "foo"))
}

func TestObjects_GCGracePeriod(t *testing.T) {
	o, _, _ := newTestObjects(t)
	assert.Equal(t, DefaultGCGracePeriod, o.GCGracePeriod())

	secs := 90.0
	o.OnConnectionDetails(protocol.ConnectionDetails{ObjectsGCGracePeriod: &secs})
	assert.Equal(t, 90*time.Second, o.GCGracePeriod())

	o.OnConnectionDetails(protocol.ConnectionDetails{})
	assert.Equal(t, DefaultGCGracePeriod, o.GCGracePeriod())

	local := New(testutils.NewRecordingHost(), Options{GCGracePeriod: time.Minute})
	defer local.Close()
	local.OnConnectionDetails(protocol.ConnectionDetails{ObjectsGCGracePeriod: &secs})
	assert.Equal(t, time.Minute, local.GCGracePeriod())
}

func TestObjects_Close(t *testing.T) {
	o := New(testutils.NewRecordingHost(), Options{})

	waitErr := make(chan error)
	go func() {
		waitErr <- o.WaitSync(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, o.Close())
	select {
	case err := <-waitErr:
		assert.ErrorIs(t, err, liveobjects_errors.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("WaitSync did not return on close")
	}
	assert.ErrorIs(t, o.Close(), liveobjects_errors.ErrClosed)
	_, err := o.CreateCounter(context.Background(), 1)
	assert.ErrorIs(t, err, liveobjects_errors.ErrClosed)

	// inbound messages after close are ignored
	o.HandleOperationMessage(testutils.Message(testutils.Serial("a", 1, 0), "a",
		testutils.MapSetOp("root", "foo", testutils.StringData("bar"))))
	assert.True(t, o.pool.Root().Get("foo").IsAbsent())
}

func TestObjects_LoopbackHost(t *testing.T) {
	ctx := context.Background()
	var o *Objects
	var seq uint64
	h := host.FromFunc(func(ctx context.Context, m *protocol.OperationMessage) error {
		seq++
		echo := *m
		echo.Serial = testutils.Serial("self", seq, 0)
		echo.SiteCode = "self"
		o.HandleOperationMessage(&echo)
		return nil
	}, nil)
	o = New(h, Options{GCInterval: time.Hour})
	defer o.Close()
	o.OnAttached(false)

	root, err := o.GetRoot(ctx)
	require.NoError(t, err)
	c, err := o.CreateCounter(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, root.Set(ctx, "c", CounterValue(c)))
	require.NoError(t, c.Increment(ctx, 2))
	assert.Same(t, c, getCounter(t, root, "c"))
	assert.Equal(t, 3.0, c.Value())

	m, err := o.CreateMap(ctx, map[string]Value{"k": StringValue("v")})
	require.NoError(t, err)
	assert.Equal(t, "v", getString(t, m, "k"))
	assert.Same(t, m, o.pool.get(m.ID()))

	require.NoError(t, root.Remove(ctx, "c"))
	assert.True(t, root.Get("c").IsAbsent())
	assert.Equal(t, 3.0, c.Value())
}

func TestObjects_ConcurrentReads(t *testing.T) {
	o, _, clock := newTestObjects(t)
	secs := 1.0
	o.OnConnectionDetails(protocol.ConnectionDetails{ObjectsGCGracePeriod: &secs})
	root := o.pool.Root()
	o.HandleOperationMessage(msg(s("a", 1, 0), "a",
		testutils.CounterCreateOp("counter:c@1", 0),
		testutils.MapSetOp("root", "c", testutils.RefData("counter:c@1")),
	))
	c := o.pool.get("counter:c@1").(*LiveCounter)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = root.Get("k0")
				for key, v := range root.Entries() {
					_, _ = key, v.Kind()
				}
				_ = root.Size()
				_ = c.Value()
				_ = c.IsTombstoned()
			}
		}()
	}

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("k%d", i%5)
		o.HandleOperationMessage(msg(s("a", uint64(i+2), 0), "a",
			testutils.MapSetOp("root", key, testutils.NumberData(float64(i))),
			testutils.CounterIncOp("counter:c@1", 1),
		))
		if i%3 == 0 {
			o.HandleOperationMessage(msg(s("a", uint64(i+2), 1), "a", testutils.MapRemoveOp("root", key)))
		}
		if i%10 == 0 {
			clock.Advance(time.Second)
			o.CollectGarbage()
		}
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 200.0, c.Value())
	assert.Same(t, c, getCounter(t, root, "c"))
}
