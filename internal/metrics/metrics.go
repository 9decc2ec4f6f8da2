package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mcp_proxy"

var (
	// outcome: success, intent_error, tool_error, no_tools
	queryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_total",
		Help:      "Queries handled by outcome",
	}, []string{"outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "End-to-end query latency",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	// reason: timeout, error
	formatterFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "formatter_fallback_total",
		Help:      "Responses produced by the rule-based formatter",
	}, []string{"reason"})

	// result: ok, error
	catalogRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_refresh_total",
		Help:      "Remote tool catalog fetches by result",
	}, []string{"result"})

	// result: merged, secondary_failed
	augmentationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "augmentation_total",
		Help:      "Secondary list calls issued for multi-intent queries",
	}, []string{"result"})
)

func RecordQuery(outcome string, elapsed time.Duration) {
	queryTotal.WithLabelValues(outcome).Inc()
	queryDuration.Observe(elapsed.Seconds())
}

func RecordFormatterFallback(timeout bool) {
	reason := "error"
	if timeout {
		reason = "timeout"
	}
	formatterFallbackTotal.WithLabelValues(reason).Inc()
}

func RecordCatalogRefresh(err error) {
	if err != nil {
		catalogRefreshTotal.WithLabelValues("error").Inc()
		return
	}
	catalogRefreshTotal.WithLabelValues("ok").Inc()
}

func RecordAugmentation(merged bool) {
	if merged {
		augmentationTotal.WithLabelValues("merged").Inc()
		return
	}
	augmentationTotal.WithLabelValues("secondary_failed").Inc()
}
