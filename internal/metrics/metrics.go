// Package metrics exposes prometheus collectors for the memory engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackgroundTasks counts background write tasks by terminal result.
	// result: completed | failed | dropped.
	BackgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mnemora",
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "Background write tasks by result.",
	}, []string{"result"})

	// QueueDepth tracks the number of queued background tasks.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mnemora",
		Subsystem: "worker",
		Name:      "queue_depth",
		Help:      "Currently queued background write tasks.",
	})

	// SlotFailures counts dispatcher handlers that failed and left their
	// slot unresolved.
	SlotFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mnemora",
		Subsystem: "dispatch",
		Name:      "slot_failures_total",
		Help:      "Dispatcher slot handlers that failed.",
	}, []string{"slot"})

	// SensorReadingsDropped counts readings rejected by validation.
	SensorReadingsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mnemora",
		Subsystem: "sensor",
		Name:      "readings_dropped_total",
		Help:      "Sensor readings dropped by range validation.",
	})

	// IngestedTexts counts texts that completed the full pipeline.
	IngestedTexts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mnemora",
		Subsystem: "ingest",
		Name:      "texts_total",
		Help:      "Texts that completed sensory, semantic and perceptual ingestion.",
	})
)
