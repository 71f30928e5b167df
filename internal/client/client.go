// Package client wires the pieces together: it validates configuration,
// assembles the plugin pipeline, and hands out document observers and
// pagination handles.
package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/cache"
	"github.com/hanpama/graphclient/internal/observer"
	"github.com/hanpama/graphclient/internal/pagination"
	"github.com/hanpama/graphclient/internal/pipeline"
	"github.com/hanpama/graphclient/internal/typeconf"
)

// ErrConflictingPipeline is returned by New when both Plugins and Pipeline
// are supplied. The two are mutually exclusive by contract.
var ErrConflictingPipeline = errors.New("client: 'Plugins' and 'Pipeline' are mutually exclusive; configure one or the other")

// FetchParamsFunc customizes transport parameters per request before the
// network phase.
type FetchParamsFunc func(ctx context.Context, req *pipeline.Request) pipeline.FetchOptions

// FetchFunc replaces the default HTTP network plugin.
type FetchFunc func(ctx context.Context, req *pipeline.Request) (*pipeline.Result, error)

// Options configures a Client.
type Options struct {
	// URL is the GraphQL endpoint for the default network plugin.
	URL string
	// FetchParams, when set, contributes per-request transport parameters
	// immediately after input coercion.
	FetchParams FetchParamsFunc
	// Plugins are user middlewares appended between the standard cache
	// plugins and the network plugin. Mutually exclusive with Pipeline.
	Plugins []pipeline.Plugin
	// Pipeline replaces the standard plugin set entirely (coercion and
	// fetch-params still run first). Mutually exclusive with Plugins.
	Pipeline func() []pipeline.Plugin
	// Extensions are plugins contributed by framework integrations,
	// appended after user plugins.
	Extensions []pipeline.Plugin
	// Fetch substitutes the terminal network plugin.
	Fetch FetchFunc
	// Store is the cache collaborator. Nil disables caching.
	Store cache.Store
	// Types is the type configuration used by pagination handlers.
	Types typeconf.Map
	// HTTPClient overrides the default transport of the fetch plugin.
	HTTPClient *http.Client
}

// Client owns one assembled pipeline and the shared collaborators. It is
// safe for concurrent use; per-request state lives in observers.
type Client struct {
	chain pipeline.Chain
	url   string
	store cache.Store
	types typeconf.Map
}

// New validates the options and assembles the plugin pipeline once. Assembly
// errors are configuration mistakes and surface here, never at send time.
func New(opts Options) (*Client, error) {
	plugins, err := assemble(opts)
	if err != nil {
		return nil, err
	}
	return &Client{
		chain: pipeline.NewChain(plugins),
		url:   opts.URL,
		store: opts.Store,
		types: opts.Types,
	}, nil
}

// ObserveArgs parameterizes Observe.
type ObserveArgs struct {
	Artifact *artifact.Artifact
	// InitialValue seeds the observer before any send, e.g. the cached
	// parent value of a fragment.
	InitialValue map[string]any
}

// Observe creates a document observer bound to this client's pipeline. When
// a store is configured the observer watches it for writes from other
// observers while it has subscribers.
func (c *Client) Observe(args ObserveArgs) *observer.Observer {
	var watch observer.WatchFunc
	if c.store != nil {
		store, name := c.store, args.Artifact.Name
		watch = func(origin string, notify func(map[string]any)) func() {
			return store.Subscribe(name, origin, notify)
		}
	}
	return observer.New(observer.Options{
		Artifact:     args.Artifact,
		Chain:        c.chain,
		Fetch:        pipeline.FetchOptions{URL: c.url, Headers: http.Header{}},
		Watch:        watch,
		InitialValue: args.InitialValue,
	})
}

// Paginate creates an observer plus the pagination handle matching the
// artifact's refetch metadata.
func (c *Client) Paginate(args ObserveArgs) (pagination.Handle, error) {
	obs := c.Observe(args)
	return pagination.For(obs, c.types)
}

// Types returns the client's type configuration.
func (c *Client) Types() typeconf.Map { return c.types }
