// Package logging attaches a zerolog subscriber to the eventbus so client
// activity can be observed without wiring a logger through the core.
package logging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/reqid"
)

// Attach subscribes log emitters for every client event and returns a
// function detaching them all.
func Attach(log zerolog.Logger) (detach func()) {
	var stops []func()

	stops = append(stops, eventbus.Subscribe(func(ctx context.Context, e events.SendStart) {
		rid, _ := reqid.FromContext(ctx)
		log.Debug().
			Str("send_id", rid).
			Str("artifact", e.Artifact).
			Str("kind", e.Kind).
			Uint64("generation", e.Generation).
			Msg("send started")
	}))

	stops = append(stops, eventbus.Subscribe(func(ctx context.Context, e events.SendFinish) {
		rid, _ := reqid.FromContext(ctx)
		ev := log.Debug()
		if e.Err != nil {
			ev = log.Warn().Err(e.Err)
		}
		ev.Str("send_id", rid).
			Str("artifact", e.Artifact).
			Uint64("generation", e.Generation).
			Bool("committed", e.Committed).
			Bool("discarded", e.Discarded).
			Dur("duration", e.Duration).
			Msg("send finished")
	}))

	stops = append(stops, eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		ev := log.Debug()
		if e.Err != nil {
			ev = log.Warn().Err(e.Err)
		}
		ev.Str("artifact", e.Artifact).
			Str("url", e.URL).
			Int("status", e.Status).
			Dur("duration", e.Duration).
			Msg("fetch finished")
	}))

	stops = append(stops, eventbus.Subscribe(func(ctx context.Context, e events.PageLoad) {
		ev := log.Debug()
		if e.Err != nil {
			ev = log.Warn().Err(e.Err)
		}
		ev.Str("artifact", e.Artifact).
			Str("direction", e.Direction).
			Dur("duration", e.Duration).
			Msg("page loaded")
	}))

	stops = append(stops, eventbus.Subscribe(func(ctx context.Context, e events.CacheWrite) {
		log.Trace().
			Str("artifact", e.Artifact).
			Bool("apply_updates", e.ApplyUpdates).
			Msg("cache write")
	}))

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}
