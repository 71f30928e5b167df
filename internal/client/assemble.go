package client

import (
	"net/http"

	"github.com/hanpama/graphclient/internal/pipeline"
)

// assemble produces the ordered plugin list for a client:
//
//  1. input coercion, always first
//  2. fetch-params, when configured
//  3. an explicit Pipeline verbatim, or
//  4. the query and mutation plugins,
//  5. user plugins in the order given,
//  6. extension plugins,
//  7. the network plugin last (default HTTP or custom fetch function).
//
// With an explicit Pipeline, steps 4–7 are skipped: the caller owns the rest
// of the chain including its network terminal.
func assemble(opts Options) ([]pipeline.Plugin, error) {
	if opts.Plugins != nil && opts.Pipeline != nil {
		return nil, ErrConflictingPipeline
	}

	out := []pipeline.Plugin{coercionPlugin()}
	if opts.FetchParams != nil {
		out = append(out, fetchParamsPlugin(opts.FetchParams))
	}

	if opts.Pipeline != nil {
		return append(out, opts.Pipeline()...), nil
	}

	out = append(out, queryPlugin(opts.Store), mutationPlugin(opts.Store))
	out = append(out, opts.Plugins...)
	out = append(out, opts.Extensions...)

	if opts.Fetch != nil {
		out = append(out, customFetchPlugin(opts.Fetch))
	} else {
		hc := opts.HTTPClient
		if hc == nil {
			hc = http.DefaultClient
		}
		out = append(out, httpFetchPlugin(hc))
	}
	return out, nil
}
