package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ledgerCommitsTotal,
		ledgerCommitSeconds,
	)
}

var (
	ledgerCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_commits_total",
			Help: "Account store commits by result (ok or error kind).",
		},
		[]string{"result"},
	)

	ledgerCommitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_commit_seconds",
			Help:    "Account store commit latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func ObserveCommit(kind string, err error, elapsed time.Duration) {
	ledgerCommitsTotal.WithLabelValues(result(kind, err)).Inc()
	ledgerCommitSeconds.Observe(elapsed.Seconds())
}
