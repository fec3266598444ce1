/*
Package metrics defines and registers the Prometheus metrics for the
batched-write engine: chunker throughput, throttler concurrency, sanitizer
drops, classifier/cleaner outcomes, write façade operation latency, upload
queue buffer depth, and failover coordinator state. Metrics are registered
at package init against the default Prometheus registry and exposed via
Handler() for scraping.

# Usage

	timer := metrics.NewTimer()
	// ... run a façade operation ...
	timer.ObserveDurationVec(metrics.FacadeOperationDuration, "ensureExists")
	metrics.FacadeOperationsTotal.WithLabelValues("ensureExists", "ok").Inc()

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
