package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/pipeline"
)

// ErrNoURL is the hard policy error raised when the network phase runs with
// no endpoint configured. It is not retried here; retry is a plugin concern.
var ErrNoURL = errors.New("fetch: no URL configured; pass Options.URL or set one via FetchParams")

// fetchParamsPlugin lets callers contribute per-request transport
// parameters right before the network phase.
func fetchParamsPlugin(fn FetchParamsFunc) pipeline.Plugin {
	return pipeline.Plugin{
		Name: "fetch-params",
		BeforeNetwork: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			params := fn(ctx, req)
			if params.URL != "" {
				req.Fetch.URL = params.URL
			}
			if params.Headers != nil {
				if req.Fetch.Headers == nil {
					req.Fetch.Headers = http.Header{}
				}
				for k, vs := range params.Headers {
					for _, v := range vs {
						req.Fetch.Headers.Add(k, v)
					}
				}
			}
			return next(ctx)
		},
	}
}

// customFetchPlugin wraps a user fetch function as the terminal network
// plugin.
func customFetchPlugin(fn FetchFunc) pipeline.Plugin {
	return pipeline.Plugin{
		Name: "fetch",
		Network: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			return fn(ctx, req)
		},
	}
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]any          `json:"data"`
	Errors []pipeline.GraphQLError `json:"errors,omitempty"`
}

// httpFetchPlugin executes the document over GraphQL-over-HTTP. A 2xx
// response with a data field resolves successfully even when field errors
// are attached; those travel inside the result per GraphQL semantics.
func httpFetchPlugin(hc *http.Client) pipeline.Plugin {
	return pipeline.Plugin{
		Name: "fetch",
		Network: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			if req.Fetch.URL == "" {
				return nil, ErrNoURL
			}

			op, err := req.Artifact.Operation()
			if err != nil {
				return nil, err
			}
			body, err := json.Marshal(graphQLRequest{
				Query:         req.Artifact.Raw,
				OperationName: op.Name,
				Variables:     req.Variables,
			})
			if err != nil {
				return nil, fmt.Errorf("fetch: encoding request: %w", err)
			}

			hr, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Fetch.URL, bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("fetch: %w", err)
			}
			hr.Header.Set("Content-Type", "application/json")
			hr.Header.Set("Accept", "application/json")
			for k, vs := range req.Fetch.Headers {
				for _, v := range vs {
					hr.Header.Add(k, v)
				}
			}
			if auth, ok := req.Session["Authorization"].(string); ok && auth != "" {
				hr.Header.Set("Authorization", auth)
			}

			eventbus.Publish(ctx, events.FetchStart{Artifact: req.Artifact.Name, URL: req.Fetch.URL})
			start := time.Now()
			resp, err := hc.Do(hr)
			if err != nil {
				eventbus.Publish(ctx, events.FetchFinish{
					Artifact: req.Artifact.Name, URL: req.Fetch.URL, Err: err, Duration: time.Since(start),
				})
				return nil, fmt.Errorf("fetch: %w", err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			eventbus.Publish(ctx, events.FetchFinish{
				Artifact: req.Artifact.Name, URL: req.Fetch.URL,
				Status: resp.StatusCode, Err: err, Duration: time.Since(start),
			})
			if err != nil {
				return nil, fmt.Errorf("fetch: reading response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, fmt.Errorf("fetch: server returned status %d", resp.StatusCode)
			}

			var out graphQLResponse
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("fetch: invalid response JSON: %w", err)
			}
			return &pipeline.Result{
				Data:    out.Data,
				Errors:  out.Errors,
				Source:  pipeline.SourceNetwork,
				Partial: len(out.Errors) > 0 && out.Data != nil,
			}, nil
		},
	}
}
