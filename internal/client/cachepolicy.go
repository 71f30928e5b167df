package client

import (
	"context"
	"fmt"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/cache"
	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/pipeline"
)

// queryPlugin enforces the fetch policy for query artifacts: it answers from
// the store when the policy allows, and writes network results back on the
// way out, substituting the merged view so subscribers see accumulated data.
func queryPlugin(store cache.Store) pipeline.Plugin {
	return pipeline.Plugin{
		Name: "query",
		Start: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			if req.Artifact.Kind != artifact.KindQuery && req.Artifact.Kind != artifact.KindFragment {
				return next(ctx)
			}
			if store == nil || req.Policy == pipeline.NetworkOnly {
				return next(ctx)
			}
			data, hit := store.Read(req.Artifact, req.Variables)
			switch req.Policy {
			case pipeline.CacheOnly:
				// A miss is an answer: nil data, no network.
				return &pipeline.Result{Data: data, Source: pipeline.SourceCache}, nil
			default: // CacheOrNetwork
				if hit {
					return &pipeline.Result{Data: data, Source: pipeline.SourceCache}, nil
				}
				return next(ctx)
			}
		},
		End: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			res := req.Result
			if store == nil || res == nil || res.Source != pipeline.SourceNetwork ||
				(req.Artifact.Kind != artifact.KindQuery && req.Artifact.Kind != artifact.KindFragment) ||
				req.CacheParams.DisableWrite || res.Data == nil {
				return next(ctx)
			}
			view, err := store.Write(req.Artifact, req.Variables, res.Data, cache.WriteParams{
				ApplyUpdates: req.CacheParams.ApplyUpdates,
				At:           req.CacheParams.At,
				Origin:       req.Origin,
			})
			if err != nil {
				return nil, fmt.Errorf("cache write for %s: %w", req.Artifact.Name, err)
			}
			eventbus.Publish(ctx, events.CacheWrite{
				Artifact:     req.Artifact.Name,
				ApplyUpdates: req.CacheParams.ApplyUpdates,
			})
			res.Data = view
			return next(ctx)
		},
	}
}

// mutationPlugin writes mutation results into the store so watching
// observers pick up the change through cache notification.
func mutationPlugin(store cache.Store) pipeline.Plugin {
	return pipeline.Plugin{
		Name: "mutation",
		End: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			res := req.Result
			if store == nil || res == nil || req.Artifact.Kind != artifact.KindMutation ||
				req.CacheParams.DisableWrite || res.Data == nil {
				return next(ctx)
			}
			view, err := store.Write(req.Artifact, req.Variables, res.Data, cache.WriteParams{
				ApplyUpdates: req.CacheParams.ApplyUpdates,
				At:           req.CacheParams.At,
				Origin:       req.Origin,
			})
			if err != nil {
				return nil, fmt.Errorf("cache write for %s: %w", req.Artifact.Name, err)
			}
			eventbus.Publish(ctx, events.CacheWrite{
				Artifact:     req.Artifact.Name,
				ApplyUpdates: req.CacheParams.ApplyUpdates,
			})
			res.Data = view
			return next(ctx)
		},
	}
}
