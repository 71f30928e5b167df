package pipeline

import (
	"net/http"

	"github.com/hanpama/graphclient/internal/artifact"
)

// FetchPolicy decides how a send interacts with the cache before touching
// the network.
type FetchPolicy string

const (
	// CacheOrNetwork serves a full cached value when present and only
	// falls through to the network on a miss. Default.
	CacheOrNetwork FetchPolicy = "CacheOrNetwork"
	// CacheOnly never touches the network; a miss resolves with nil data.
	CacheOnly FetchPolicy = "CacheOnly"
	// NetworkOnly skips the cache read but still writes the response back.
	NetworkOnly FetchPolicy = "NetworkOnly"
)

// Position selects where applied updates land in cached lists.
type Position string

const (
	PositionTail Position = "tail"
	PositionHead Position = "head"
)

// CacheParams tunes how the cache layer treats the response of one send.
type CacheParams struct {
	// ApplyUpdates appends/merges the response into existing cached data
	// instead of replacing it. Pagination loads set this.
	ApplyUpdates bool
	// At is the merge position for list updates. Zero value means tail.
	At Position
	// DisableWrite skips the write-back entirely.
	DisableWrite bool
}

// Session carries caller-scoped values (auth tokens and the like) into the
// pipeline. Plugins may read it; the default fetch plugin copies string
// values into request headers.
type Session map[string]any

// FetchOptions is the resolved transport parameterization for one send.
type FetchOptions struct {
	URL     string
	Headers http.Header
}

// Request is the per-invocation state threaded through the pipeline. It is
// owned by exactly one send; plugins mutate it freely but must not retain it
// past their hook.
type Request struct {
	Artifact    *artifact.Artifact
	Variables   map[string]any
	Policy      FetchPolicy
	CacheParams CacheParams
	Session     Session
	Fetch       FetchOptions

	// Generation is the observer-issued token for this send.
	Generation uint64
	// Origin identifies the issuing observer, so cache writes can skip
	// echoing change notifications back to their own source.
	Origin string

	// Result is the settled response, available to response-phase hooks.
	Result *Result
	// Err records the request-phase failure when the response phase runs
	// for resource release after an abort.
	Err error
}

// GraphQLError is one error entry of a GraphQL response. Per GraphQL
// semantics these accompany partial data and are not Go errors.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// ResultSource tells where a committed result came from.
type ResultSource string

const (
	SourceCache   ResultSource = "cache"
	SourceNetwork ResultSource = "network"
)

// Result is the terminal value of one pipeline run: response data plus any
// field errors attached to it.
type Result struct {
	Data    map[string]any
	Errors  []GraphQLError
	Source  ResultSource
	Partial bool
}
