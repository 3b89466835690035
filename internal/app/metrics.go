/**
 * @description
 * Prometheus metrics for the redemption engine. Exposed on the ops router's
 * /metrics endpoint.
 */
package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftcode_redemptions_total",
		Help: "Terminal redemption driver outcomes by record status.",
	}, []string{"status"})

	outcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftcode_outcomes_total",
		Help: "Raw classification outcomes observed by the redemption driver.",
	}, []string{"outcome"})

	codesDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftcode_codes_discovered_total",
		Help: "Gift codes newly discovered from the feed.",
	})

	orchestrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "giftcode_orchestrations_total",
		Help: "Orchestrator runs by result (completed, skipped, duplicate).",
	}, []string{"result"})

	slotRateLimitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "giftcode_slot_rate_limits_total",
		Help: "Times a session slot was marked rate limited.",
	})
)
