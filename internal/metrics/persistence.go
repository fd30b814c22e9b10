package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NamePersistenceFailures = "persistence_failures_total"
	LabelOperation          = "operation"
)

var PersistenceFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NamePersistenceFailures,
		Help:      "Total failed writes to the durable task store",
		Namespace: Namespace,
	},
	[]string{LabelOperation},
)
