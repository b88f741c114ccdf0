package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_moderation_verdicts",
	Help: "Number of moderation verdicts by provider and outcome",
}, []string{"provider", "flagged"})

var localRuleCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_moderation_local_rules",
	Help: "Number of texts flagged by each local rule",
}, []string{"rule"})

var classifierDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pancy_moderation_classifier_duration_sec",
	Help:    "Duration of external classifier calls",
	Buckets: prometheus.ExponentialBuckets(0.025, 2, 8),
}, []string{"provider"})

var classifierErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_moderation_classifier_errors",
	Help: "Number of failed external classifier calls",
}, []string{"provider", "timeout"})

var fallbackCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pancy_moderation_fallbacks",
	Help: "Number of times the secondary classifier was used after a primary failure",
})
