// Package metrics provides Prometheus instrumentation for the ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsPlaced counts committed bet lines by session.
	BetsPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_bets_placed_total",
		Help: "Total number of bet lines committed",
	}, []string{"session"})

	// StakeTotal is the cumulative amount debited for bets.
	StakeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_stake_total",
		Help: "Cumulative stake debited for committed bets",
	})

	// PlaceRejections counts rejected placements by error code.
	PlaceRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_place_rejections_total",
		Help: "Bet placements rejected, by error code",
	}, []string{"code"})

	// VersionConflicts counts optimistic concurrency conflicts by operation.
	VersionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_version_conflicts_total",
		Help: "Optimistic concurrency conflicts observed",
	}, []string{"operation"})

	// SettledBets counts settlement outcomes (WIN, LOSE, skipped, failed).
	SettledBets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_settled_bets_total",
		Help: "Bets processed by settlement passes, by outcome",
	}, []string{"outcome"})

	// PayoutTotal is the cumulative amount credited to winners.
	PayoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wager_payout_total",
		Help: "Cumulative amount credited to winning accounts",
	})

	// SettlementDuration tracks how long one settlement pass takes.
	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wager_settlement_duration_seconds",
		Help:    "Settlement pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wager_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wager_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records request metrics labelled by route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
