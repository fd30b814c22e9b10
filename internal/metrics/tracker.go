package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NameTrackerFlushes = "tracker_flushes_total"
	NameTrackedHours   = "tracked_hours_total"
)

var TrackerFlushes = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameTrackerFlushes,
		Help:      "Total elapsed time flushes performed by the time tracker",
		Namespace: Namespace,
	},
)

var TrackedHours = promauto.NewCounter(
	prometheus.CounterOpts{
		Name:      NameTrackedHours,
		Help:      "Total hours recorded by the time tracker",
		Namespace: Namespace,
	},
)
