package resdb

import "github.com/prometheus/client_golang/prometheus"

var CommitCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "resdb",
	Subsystem: "tx",
	Name:      "commits",
}, []string{"result"})

var CommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "resdb",
	Subsystem: "tx",
	Name:      "commit_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

var ReindexedDocuments = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "resdb",
	Subsystem: "catalog",
	Name:      "reindexed_documents",
}, []string{"reason"})

var SchedulerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "resdb",
	Subsystem: "scheduler",
	Name:      "runs",
}, []string{"result"})

var FiredEvents = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "resdb",
	Subsystem: "scheduler",
	Name:      "fired_events",
})

// Collectors returns every metric of the database for the host to register.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CommitCount,
		CommitDuration,
		ReindexedDocuments,
		SchedulerRuns,
		FiredEvents,
	}
}
