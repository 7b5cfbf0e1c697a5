package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipranges_sync_runs_total",
		Help: "Total number of sync runs, by outcome (updated, unchanged, failed, skipped)",
	}, []string{"outcome"})
	SyncLastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ipranges_sync_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last sync run that left a valid snapshot in the cache",
	})
	UpstreamFetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ipranges_upstream_fetch_duration_seconds",
		Help:    "Duration of upstream ip-ranges document fetches",
		Buckets: prometheus.DefBuckets,
	})
	CacheReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipranges_cache_reads_total",
		Help: "Total number of cache tier reads, by tier and result (hit, miss, stale, error)",
	}, []string{"tier", "result"})
	CacheWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipranges_cache_writes_total",
		Help: "Total number of cache tier writes, by tier and result (ok, error)",
	}, []string{"tier", "result"})
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipranges_ratelimit_decisions_total",
		Help: "Total number of rate limiter decisions, by outcome (allowed, denied, exempt)",
	}, []string{"outcome"})
	RateLimitTrackedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ipranges_ratelimit_tracked_clients",
		Help: "Number of client windows currently tracked by the rate limiter",
	})
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ipranges_events_published_total",
		Help: "Total number of sync-outcome events published, by result (ok, error)",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(SyncRuns)
	prometheus.MustRegister(SyncLastSuccess)
	prometheus.MustRegister(UpstreamFetchDuration)
	prometheus.MustRegister(CacheReads)
	prometheus.MustRegister(CacheWrites)
	prometheus.MustRegister(RateLimitDecisions)
	prometheus.MustRegister(RateLimitTrackedClients)
	prometheus.MustRegister(EventsPublished)
}

// Handler returns the HTTP handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
