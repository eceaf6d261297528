package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the aggregate counters, exposed on the control
// API's /metrics endpoint. The JSON file stays the durable source of
// truth; these reset with the process.
var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepsearch_searches_total",
		Help: "Completed search jobs by outcome.",
	}, []string{"outcome"})

	messagesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_messages_scanned_total",
		Help: "Messages examined across all search jobs.",
	})

	matchesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_matches_found_total",
		Help: "Messages that matched a search predicate.",
	})

	searchSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepsearch_search_seconds_total",
		Help: "Wall-clock seconds spent inside search jobs.",
	})
)

func observeOutcome(o Outcome) {
	outcome := "completed"
	if o.Cancelled {
		outcome = "cancelled"
	}
	searchesTotal.WithLabelValues(outcome).Inc()
	messagesScanned.Add(float64(o.Messages))
	matchesFound.Add(float64(o.Matches))
	searchSeconds.Add(o.Elapsed.Seconds())
}
