package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Directory metrics
	DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menmos_documents_total",
			Help: "Total number of live documents in the inverted index",
		},
	)

	StorageNodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "menmos_storage_nodes_total",
			Help: "Total number of registered storage nodes by presence state",
		},
		[]string{"present"},
	)

	UsersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menmos_users_total",
			Help: "Total number of registered users",
		},
	)

	// Blob lifecycle metrics
	BlobsPutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menmos_blobs_put_total",
			Help: "Total number of blobs successfully created",
		},
	)

	BlobsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menmos_blobs_deleted_total",
			Help: "Total number of blobs deleted",
		},
	)

	BlobPutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menmos_blob_put_duration_seconds",
			Help:    "Time taken to index a new blob (add_blob) in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BlobUpdateMetaDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menmos_blob_update_meta_duration_seconds",
			Help:    "Time taken to re-index a blob's metadata in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Query metrics
	QueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menmos_queries_total",
			Help: "Total number of query evaluations",
		},
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menmos_query_duration_seconds",
			Help:    "Time taken to evaluate and project a query in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	QueryResultHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menmos_query_result_hits",
			Help:    "Number of hits returned per query after pagination",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
		},
	)

	// Routing metrics
	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menmos_routing_decisions_total",
			Help: "Total number of node placement decisions by source (rule, round_robin)",
		},
		[]string{"source"},
	)

	PendingMovesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menmos_pending_moves_total",
			Help: "Total number of queued move requests across all users",
		},
	)

	RebuildsTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menmos_rebuilds_triggered_total",
			Help: "Total number of rebuild flags issued on storage node registration",
		},
	)

	// Storage-node-side metrics
	KeyLockActiveTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menmos_keylock_active_total",
			Help: "Number of blob ids currently tracked by the keyed lock map",
		},
	)

	KeyLockEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "menmos_keylock_evictions_total",
			Help: "Total number of idle lock records swept from the keyed lock map",
		},
	)

	TransferQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "menmos_transfer_queue_depth",
			Help: "Current number of move requests waiting in the transfer manager's queue",
		},
	)

	TransfersCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menmos_transfers_completed_total",
			Help: "Total number of blob transfers by outcome (ok, failed, deduplicated)",
		},
		[]string{"outcome"},
	)

	TransferDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menmos_transfer_duration_seconds",
			Help:    "Time taken to move a blob to its destination node in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		DocumentsTotal,
		StorageNodesTotal,
		UsersTotal,
		BlobsPutTotal,
		BlobsDeletedTotal,
		BlobPutDuration,
		BlobUpdateMetaDuration,
		QueriesTotal,
		QueryDuration,
		QueryResultHits,
		RoutingDecisionsTotal,
		PendingMovesTotal,
		RebuildsTriggeredTotal,
		KeyLockActiveTotal,
		KeyLockEvictionsTotal,
		TransferQueueDepth,
		TransfersCompletedTotal,
		TransferDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
