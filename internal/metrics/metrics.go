package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tnotify",
		Name:      "reconcile_passes_total",
		Help:      "Reconciliation passes by outcome (ok, skipped, error).",
	}, []string{"result"})

	PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tnotify",
		Name:      "reconcile_pass_duration_seconds",
		Help:      "Reconciliation pass duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 1, 3, 10, 30},
	})

	PendingTorrents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tnotify",
		Name:      "pending_torrents",
		Help:      "Wait list size observed by the last pass.",
	})

	VanishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tnotify",
		Name:      "vanished_torrents_total",
		Help:      "Wait list entries pruned because the torrent service no longer knows them.",
	})

	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tnotify",
		Name:      "notifications_total",
		Help:      "Finish notifications by delivery result (sent, dropped, failed).",
	}, []string{"result"})

	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tnotify",
		Name:      "submissions_total",
		Help:      "Torrent submissions by stage reached (ok, resolve, add, register).",
	}, []string{"result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		PassesTotal,
		PassDuration,
		PendingTorrents,
		VanishedTotal,
		NotificationsTotal,
		SubmissionsTotal,
	)
}
