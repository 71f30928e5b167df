// Package metrics exposes Prometheus instruments for client activity and an
// eventbus subscriber feeding them.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
)

var (
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphclient_sends_total",
			Help: "Pipeline executions started, by document and operation kind",
		},
		[]string{"artifact", "kind"},
	)

	SendOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphclient_send_outcomes_total",
			Help: "Settled sends by outcome: committed, discarded or errored",
		},
		[]string{"artifact", "outcome"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphclient_send_duration_seconds",
			Help:    "Time from send start to settlement",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"artifact"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graphclient_fetch_duration_seconds",
			Help:    "HTTP exchange duration of the network plugin",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"artifact"},
	)

	PageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphclient_page_loads_total",
			Help: "Pagination loads by document and direction",
		},
		[]string{"artifact", "direction"},
	)

	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphclient_cache_writes_total",
			Help: "Cache write-backs, split by replace vs applied update",
		},
		[]string{"artifact", "mode"},
	)
)

// Register attaches the eventbus subscribers feeding the instruments and
// returns a detach function.
func Register() (detach func()) {
	var stops []func()

	stops = append(stops, eventbus.Subscribe(func(_ context.Context, e events.SendStart) {
		SendsTotal.WithLabelValues(e.Artifact, e.Kind).Inc()
	}))

	stops = append(stops, eventbus.Subscribe(func(_ context.Context, e events.SendFinish) {
		outcome := "committed"
		switch {
		case e.Err != nil:
			outcome = "errored"
		case e.Discarded:
			outcome = "discarded"
		}
		SendOutcomesTotal.WithLabelValues(e.Artifact, outcome).Inc()
		SendDuration.WithLabelValues(e.Artifact).Observe(e.Duration.Seconds())
	}))

	stops = append(stops, eventbus.Subscribe(func(_ context.Context, e events.FetchFinish) {
		FetchDuration.WithLabelValues(e.Artifact).Observe(e.Duration.Seconds())
	}))

	stops = append(stops, eventbus.Subscribe(func(_ context.Context, e events.PageLoad) {
		PageLoadsTotal.WithLabelValues(e.Artifact, e.Direction).Inc()
	}))

	stops = append(stops, eventbus.Subscribe(func(_ context.Context, e events.CacheWrite) {
		mode := "replace"
		if e.ApplyUpdates {
			mode = "apply"
		}
		CacheWritesTotal.WithLabelValues(e.Artifact, mode).Inc()
	}))

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
