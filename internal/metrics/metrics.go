package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printrelay_jobs_enqueued_total",
		Help: "Total number of print jobs accepted into the queue",
	})

	JobsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printrelay_jobs_succeeded_total",
		Help: "Total number of print jobs delivered to the printer",
	})

	JobsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "printrelay_jobs_failed_total",
		Help: "Total number of print jobs that ended in failure",
	}, []string{"kind"})

	DispatchAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printrelay_dispatch_attempts_total",
		Help: "Total number of print attempts, retries included",
	})

	EventsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printrelay_events_rejected_total",
		Help: "Total number of inbound events dropped as malformed",
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "printrelay_dispatch_duration_seconds",
		Help:    "Time taken to encode and send one print attempt",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "printrelay_queue_depth",
		Help: "Current number of jobs tracked by the queue",
	})

	PrinterUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "printrelay_printer_up",
		Help: "Whether the last printer interaction succeeded (1) or failed (0)",
	})
)
