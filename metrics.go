package liveobjects

import (
	"github.com/drpcorg/liveobjects/utils"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var OperationsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "liveobjects",
	Subsystem: "applier",
	Name:      "operations_applied",
}, []string{"action"})

var OperationsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "liveobjects",
	Subsystem: "applier",
	Name:      "operations_discarded",
}, []string{"action", "reason"})

var SyncSequences = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "liveobjects",
	Subsystem: "sync",
	Name:      "sequences",
}, []string{"result"})

var BufferedOperations = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "liveobjects",
	Subsystem: "sync",
	Name:      "buffered_operations",
})

var GCRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "liveobjects",
	Subsystem: "gc",
	Name:      "removed",
}, []string{"kind"})

var GCDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "liveobjects",
	Subsystem: "gc",
	Name:      "sweep_duration_seconds",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

func registerMetrics(reg prometheus.Registerer, log utils.Logger) {
	for _, c := range []prometheus.Collector{
		OperationsApplied,
		OperationsDiscarded,
		SyncSequences,
		BufferedOperations,
		GCRemoved,
		GCDuration,
	} {
		var already prometheus.AlreadyRegisteredError
		if err := reg.Register(c); err != nil && !errors.As(err, &already) {
			log.Warn("metric not registered", "err", err)
		}
	}
}

// PoolCollector exports the size of an objects pool on every scrape.
type PoolCollector struct {
	pool *ObjectsPool

	objects     *prometheus.Desc
	tombstoned  *prometheus.Desc
	entries     *prometheus.Desc
	deadEntries *prometheus.Desc
	graveyard   *prometheus.Desc
}

func NewPoolCollector(channel string, pool *ObjectsPool) *PoolCollector {
	labels := prometheus.Labels{"channel": channel}
	return &PoolCollector{
		pool: pool,

		objects: prometheus.NewDesc(
			"liveobjects_pool_objects",
			"Number of objects in the pool by type",
			[]string{"type"}, labels,
		),
		tombstoned: prometheus.NewDesc(
			"liveobjects_pool_tombstoned_objects",
			"Number of tombstoned objects waiting for collection",
			nil, labels,
		),
		entries: prometheus.NewDesc(
			"liveobjects_pool_map_entries",
			"Number of visible map entries",
			nil, labels,
		),
		deadEntries: prometheus.NewDesc(
			"liveobjects_pool_tombstoned_map_entries",
			"Number of tombstoned map entries waiting for collection",
			nil, labels,
		),
		graveyard: prometheus.NewDesc(
			"liveobjects_pool_graveyard_size",
			"Number of collected object ids remembered",
			nil, labels,
		),
	}
}

func (pc *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.objects
	ch <- pc.tombstoned
	ch <- pc.entries
	ch <- pc.deadEntries
	ch <- pc.graveyard
}

func (pc *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := pc.pool.stats()

	ch <- prometheus.MustNewConstMetric(
		pc.objects,
		prometheus.GaugeValue,
		float64(st.maps),
		"map",
	)
	ch <- prometheus.MustNewConstMetric(
		pc.objects,
		prometheus.GaugeValue,
		float64(st.counters),
		"counter",
	)
	ch <- prometheus.MustNewConstMetric(
		pc.tombstoned,
		prometheus.GaugeValue,
		float64(st.tombstoned),
	)
	ch <- prometheus.MustNewConstMetric(
		pc.entries,
		prometheus.GaugeValue,
		float64(st.entries),
	)
	ch <- prometheus.MustNewConstMetric(
		pc.deadEntries,
		prometheus.GaugeValue,
		float64(st.deadEntries),
	)
	ch <- prometheus.MustNewConstMetric(
		pc.graveyard,
		prometheus.GaugeValue,
		float64(st.graveyard),
	)
}
