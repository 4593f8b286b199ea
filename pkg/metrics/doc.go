// Package metrics exposes Prometheus collectors for the directory and
// storage daemons: document counts, query latency, routing decisions,
// and the storage-side keyed-lock and transfer-manager gauges.
//
// Collectors are registered once at init time and are safe for
// concurrent use from any goroutine. Use Timer to measure the duration
// of an operation and report it to a histogram:
//
//	timer := metrics.NewTimer()
//	defer timer.ObserveDuration(metrics.QueryDuration)
package metrics
