package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	graphBuildsCounter      *prometheus.CounterVec
	graphBuildDurationHist  prometheus.Histogram
	cacheOpsCounter         *prometheus.CounterVec
	traceFetchDurationHist  prometheus.Histogram
	traceFetchesCounter     *prometheus.CounterVec
	extractionFallbacksCtr  prometheus.Counter
	consolidationDefectsCtr prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		graphBuildsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracegraph_builds_total",
				Help: "Total number of graph builds by input source.",
			},
			[]string{"source"},
		)

		graphBuildDurationHist = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracegraph_build_duration_seconds",
				Help:    "Duration of full pipeline runs in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		cacheOpsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracegraph_cache_ops_total",
				Help: "Total number of graph cache lookups by result.",
			},
			[]string{"result"},
		)

		traceFetchDurationHist = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracegraph_trace_fetch_duration_seconds",
				Help:    "Duration of external trace fetches in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		traceFetchesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracegraph_trace_fetches_total",
				Help: "Total number of external trace fetches by outcome.",
			},
			[]string{"outcome"},
		)

		extractionFallbacksCtr = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracegraph_content_fallbacks_total",
				Help: "Total number of nodes that received fallback content after an extraction failure.",
			},
		)

		consolidationDefectsCtr = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracegraph_consolidation_defects_total",
				Help: "Total number of lost-connection defects detected during edge consolidation.",
			},
		)

		prometheus.MustRegister(
			graphBuildsCounter,
			graphBuildDurationHist,
			cacheOpsCounter,
			traceFetchDurationHist,
			traceFetchesCounter,
			extractionFallbacksCtr,
			consolidationDefectsCtr,
		)
	})
}

// GraphBuilt records one completed pipeline run for the given input source.
func GraphBuilt(source string, elapsed time.Duration) {
	if graphBuildsCounter == nil {
		return
	}
	graphBuildsCounter.WithLabelValues(source).Inc()
	graphBuildDurationHist.Observe(elapsed.Seconds())
}

// CacheOp records a cache lookup result ("hit", "miss" or "bypass").
func CacheOp(result string) {
	if cacheOpsCounter == nil {
		return
	}
	cacheOpsCounter.WithLabelValues(result).Inc()
}

// TraceFetch records one external trace fetch with its outcome
// ("ok", "not_found", "error" or "timeout").
func TraceFetch(outcome string, elapsed time.Duration) {
	if traceFetchesCounter == nil {
		return
	}
	traceFetchesCounter.WithLabelValues(outcome).Inc()
	traceFetchDurationHist.Observe(elapsed.Seconds())
}

// ContentFallback records one node that received fixed fallback content.
func ContentFallback() {
	if extractionFallbacksCtr == nil {
		return
	}
	extractionFallbacksCtr.Inc()
}

// ConsolidationDefect records one lost-connection defect.
func ConsolidationDefect() {
	if consolidationDefectsCtr == nil {
		return
	}
	consolidationDefectsCtr.Inc()
}
