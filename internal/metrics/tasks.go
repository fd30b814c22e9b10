package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	NameTasks          = "tasks"
	NameGeneratedTasks = "generated_tasks_total"
	LabelProvider      = "provider"
	LabelStatus        = "status"
	LabelSource        = "source"

	SourceTemplate = "template"
	SourceDefault  = "default"
)

var Tasks = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name:      NameTasks,
		Help:      "Current tasks per provider board",
		Namespace: Namespace,
	},
	[]string{LabelProvider, LabelStatus},
)

var GeneratedTasks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name:      NameGeneratedTasks,
		Help:      "Total tasks generated from confirmed bookings",
		Namespace: Namespace,
	},
	[]string{LabelSource},
)
