package enforcement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pancy_enforcement_decisions",
	Help: "Number of enforcement decisions by action",
}, []string{"action"})

var conflictCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pancy_enforcement_conflicts",
	Help: "Number of violation record writes that lost a version race",
})

var unbanCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pancy_enforcement_unbans",
	Help: "Number of manual unbans that cleared an active or expired ban",
})
