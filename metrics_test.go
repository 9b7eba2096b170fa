package liveobjects

import (
	"strings"
	"testing"
	"time"

	testutils "github.com/drpcorg/liveobjects/test_utils"
	"github.com/drpcorg/liveobjects/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PoolCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(testutils.NewRecordingHost(), Options{
		Channel:    "metrics",
		Clock:      utils.NewManualClock(epoch),
		GCInterval: time.Hour,
		Registerer: reg,
	})
	defer o.Close()
	o.OnAttached(false)

	o.HandleOperationMessage(msg(s("a", 1, 0), "a",
		testutils.CounterCreateOp("counter:c@1", 1),
		testutils.MapSetOp("root", "c", testutils.RefData("counter:c@1")),
		testutils.MapSetOp("root", "gone", testutils.StringData("x")),
	))
	o.HandleOperationMessage(msg(s("a", 2, 0), "a",
		testutils.MapRemoveOp("root", "gone"),
		testutils.ObjectDeleteOp("counter:c@1"),
	))

	expected := `
# HELP liveobjects_pool_objects Number of objects in the pool by type
# TYPE liveobjects_pool_objects gauge
liveobjects_pool_objects{channel="metrics",type="counter"} 1
liveobjects_pool_objects{channel="metrics",type="map"} 1
# HELP liveobjects_pool_tombstoned_map_entries Number of tombstoned map entries waiting for collection
# TYPE liveobjects_pool_tombstoned_map_entries gauge
liveobjects_pool_tombstoned_map_entries{channel="metrics"} 1
# HELP liveobjects_pool_tombstoned_objects Number of tombstoned objects waiting for collection
# TYPE liveobjects_pool_tombstoned_objects gauge
liveobjects_pool_tombstoned_objects{channel="metrics"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"liveobjects_pool_objects",
		"liveobjects_pool_tombstoned_objects",
		"liveobjects_pool_tombstoned_map_entries",
	))
}

func TestMetrics_Counters(t *testing.T) {
	o, _, _ := newTestObjects(t)
	applied := testutil.ToFloat64(OperationsApplied.WithLabelValues("MAP_SET"))
	stale := testutil.ToFloat64(OperationsDiscarded.WithLabelValues("MAP_SET", "stale"))
	completed := testutil.ToFloat64(SyncSequences.WithLabelValues("completed"))

	set := msg(s("a", 1, 0), "a", testutils.MapSetOp("root", "k", testutils.StringData("v")))
	o.HandleOperationMessage(set)
	o.HandleOperationMessage(set)
	o.HandleSyncMessage(testutils.SingleSyncMsg())

	assert.Equal(t, applied+1, testutil.ToFloat64(OperationsApplied.WithLabelValues("MAP_SET")))
	assert.Equal(t, stale+1, testutil.ToFloat64(OperationsDiscarded.WithLabelValues("MAP_SET", "stale")))
	assert.Equal(t, completed+1, testutil.ToFloat64(SyncSequences.WithLabelValues("completed")))
}
