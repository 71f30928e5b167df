package pagination_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/cache"
	"github.com/hanpama/graphclient/internal/client"
	"github.com/hanpama/graphclient/internal/pagination"
	"github.com/hanpama/graphclient/internal/pipeline"
	"github.com/hanpama/graphclient/internal/typeconf"
)

var friendNames = []string{"Ada", "Blaise", "Charles", "Grace", "Kurt", "Sophie"}

func friendsArtifact(refetch *artifact.Refetch) *artifact.Artifact {
	return &artifact.Artifact{
		Name: "UserFriends",
		Kind: artifact.KindFragment,
		Raw: `query UserFriends($id: ID!, $first: Int, $after: String, $last: Int, $before: String, $offset: Int, $limit: Int) {
  id
  friends(first: $first, after: $after, last: $last, before: $before, offset: $offset, limit: $limit) {
    edges { cursor node { id name } }
    pageInfo { startCursor endCursor hasNextPage hasPreviousPage }
  }
}`,
		Input: &artifact.Input{
			Fields: map[string]*artifact.TypeRef{
				"id":     artifact.NonNullType(artifact.NamedType("ID")),
				"first":  artifact.NamedType("Int"),
				"after":  artifact.NamedType("String"),
				"last":   artifact.NamedType("Int"),
				"before": artifact.NamedType("String"),
				"offset": artifact.NamedType("Int"),
				"limit":  artifact.NamedType("Int"),
			},
		},
		Refetch: refetch,
	}
}

func forwardRefetch() *artifact.Refetch {
	return &artifact.Refetch{
		Path:       []string{"friends"},
		Mode:       artifact.RefetchCursor,
		Direction:  artifact.DirectionForward,
		PageSize:   2,
		TargetType: "User",
	}
}

func friendEdges(start, end int) []any {
	edges := make([]any, 0, end-start)
	for i := start; i < end && i < len(friendNames); i++ {
		edges = append(edges, map[string]any{
			"cursor": fmt.Sprintf("cursor:%d", i+1),
			"node":   map[string]any{"id": fmt.Sprintf("u-%d", i+1), "name": friendNames[i]},
		})
	}
	return edges
}

// friendsServer paginates friendNames over cursor or offset variables and
// records every variables object it received.
func friendsServer(t *testing.T, hits *atomic.Int64, received *[]map[string]any) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if received != nil {
			mu.Lock()
			*received = append(*received, req.Variables)
			mu.Unlock()
		}

		start, end := 0, len(friendNames)
		switch {
		case req.Variables["last"] != nil:
			size := int(req.Variables["last"].(float64))
			end = len(friendNames)
			if before, ok := req.Variables["before"].(string); ok {
				fmt.Sscanf(before, "cursor:%d", &end)
				end--
			}
			start = end - size
			if start < 0 {
				start = 0
			}
		case req.Variables["limit"] != nil:
			start = 0
			if off, ok := req.Variables["offset"].(float64); ok {
				start = int(off)
			}
			end = start + int(req.Variables["limit"].(float64))
		default:
			size := 2
			if v, ok := req.Variables["first"].(float64); ok {
				size = int(v)
			}
			if after, ok := req.Variables["after"].(string); ok {
				fmt.Sscanf(after, "cursor:%d", &start)
			}
			end = start + size
		}
		if end > len(friendNames) {
			end = len(friendNames)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id": req.Variables["id"],
				"friends": map[string]any{
					"edges": friendEdges(start, end),
					"pageInfo": map[string]any{
						"startCursor":     fmt.Sprintf("cursor:%d", start+1),
						"endCursor":       fmt.Sprintf("cursor:%d", end),
						"hasNextPage":     end < len(friendNames),
						"hasPreviousPage": start > 0,
					},
				},
			},
		})
	}))
}

func newFriendsClient(t *testing.T, url string, types typeconf.Map) *client.Client {
	t.Helper()
	c, err := client.New(client.Options{URL: url, Store: cache.NewMemoryStore(), Types: types})
	require.NoError(t, err)
	return c
}

func userTypes() typeconf.Map {
	return typeconf.Map{"User": {Keys: []string{"id"}}}
}

func TestCursorForward_LoadNextPage_AccumulatesPages(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	var last pagination.Result
	stop := pager.Subscribe(func(r pagination.Result) {
		if !r.Fetching && r.Data != nil {
			last = r
		}
	})
	defer stop()

	ctx := context.Background()
	require.NoError(t, pager.LoadNextPage(ctx))
	require.NoError(t, pager.LoadNextPage(ctx))

	// Identity variables come from the configured key fields; the cursor
	// advances between loads.
	require.Equal(t, map[string]any{"id": "42", "first": float64(2)}, received[0])
	require.Equal(t, map[string]any{"id": "42", "first": float64(2), "after": "cursor:2"}, received[1])

	edges := last.Data["friends"].(map[string]any)["edges"].([]any)
	require.Len(t, edges, 4)
	first := edges[0].(map[string]any)["node"].(map[string]any)["name"]
	require.Equal(t, "Ada", first, "earlier pages must survive later merges")

	wantPI := pagination.PageInfo{StartCursor: "cursor:1", EndCursor: "cursor:4", HasNextPage: true}
	require.Equal(t, wantPI, pager.PageInfo())
	require.Equal(t, wantPI, *last.PageInfo)
}

func TestCursorBackward_LoadPreviousPage_PrependsAndTracksStart(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	rf := forwardRefetch()
	rf.Direction = artifact.DirectionBackward
	rf.Start = "cursor:5"

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(rf),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorBackward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	ctx := context.Background()
	require.NoError(t, pager.LoadPreviousPage(ctx))
	require.NoError(t, pager.LoadPreviousPage(ctx))

	require.Equal(t, map[string]any{"id": "42", "last": float64(2), "before": "cursor:5"}, received[0])
	require.Equal(t, map[string]any{"id": "42", "last": float64(2), "before": "cursor:3"}, received[1])

	latest := obs.Latest()
	edges := latest.Data["friends"].(map[string]any)["edges"].([]any)
	var names []string
	for _, e := range edges {
		names = append(names, e.(map[string]any)["node"].(map[string]any)["name"].(string))
	}
	if diff := cmp.Diff([]string{"Ada", "Blaise", "Charles", "Grace"}, names); diff != "" {
		t.Fatalf("prepended edges mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "cursor:1", pager.PageInfo().StartCursor)
	require.False(t, pager.PageInfo().HasPreviousPage)
}

func TestOffset_LoadNextPage_AdvancesRunningOffset(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	rf := &artifact.Refetch{
		Path:       []string{"friends"},
		Mode:       artifact.RefetchOffset,
		PageSize:   3,
		TargetType: "User",
	}
	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(rf),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewOffset(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	ctx := context.Background()
	require.NoError(t, pager.LoadNextPage(ctx))
	require.NoError(t, pager.LoadNextPage(ctx))

	require.Equal(t, map[string]any{"id": "42", "offset": float64(0), "limit": float64(3)}, received[0])
	require.Equal(t, map[string]any{"id": "42", "offset": float64(3), "limit": float64(3)}, received[1])

	edges := obs.Latest().Data["friends"].(map[string]any)["edges"].([]any)
	require.Len(t, edges, 6)
}

func TestPagination_MissingTypeConfig_FailsBeforeAnyNetworkRequest(t *testing.T) {
	var hits atomic.Int64
	srv := friendsServer(t, &hits, nil)
	defer srv.Close()

	rf := &artifact.Refetch{
		Path:       []string{"friends"},
		Mode:       artifact.RefetchOffset,
		PageSize:   3,
		TargetType: "User",
	}
	c := newFriendsClient(t, srv.URL, nil) // no type configuration at all
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(rf),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewOffset(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	err = pager.LoadNextPage(context.Background())
	var missing *typeconf.MissingTypeError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "User", missing.Type)
	require.ErrorContains(t, err, typeconf.DocsURL)
	require.Equal(t, int64(0), hits.Load(), "configuration errors must surface before network I/O")
}

func TestPagination_CustomResolver_OverridesKeyExtraction(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	types := userTypes().WithResolver("User", func(value map[string]any) map[string]any {
		return map[string]any{"id": "resolved-7"}
	})
	c := newFriendsClient(t, srv.URL, types)
	obs := c.Observe(client.ObserveArgs{Artifact: friendsArtifact(forwardRefetch())})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	require.NoError(t, pager.LoadNextPage(context.Background()))
	require.Equal(t, "resolved-7", received[0]["id"])
}

func TestHandler_Fetch_IsIdempotent(t *testing.T) {
	var hits atomic.Int64
	srv := friendsServer(t, &hits, nil)
	defer srv.Close()

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	ctx := context.Background()
	first, err := pager.Fetch(ctx)
	require.NoError(t, err)
	second, err := pager.Fetch(ctx)
	require.NoError(t, err)

	a, err := json.Marshal(first.Data)
	require.NoError(t, err)
	b, err := json.Marshal(second.Data)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, int64(2), hits.Load())
}

func TestHandler_Subscribe_BroadcastsFetchingTransitions(t *testing.T) {
	var hits atomic.Int64
	srv := friendsServer(t, &hits, nil)
	defer srv.Close()

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	var transitions []bool
	stop := pager.Subscribe(func(r pagination.Result) { transitions = append(transitions, r.Fetching) })
	defer stop()

	require.NoError(t, pager.LoadNextPage(context.Background()))

	// Initial snapshot, loading on, commit while loading, loading off.
	if diff := cmp.Diff([]bool{false, true, true, false}, transitions); diff != "" {
		t.Fatalf("fetching transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestFor_SelectsVariantByRefetchMetadata(t *testing.T) {
	c := newFriendsClient(t, "http://unused", userTypes())

	type nextLoader interface {
		LoadNextPage(context.Context, ...pagination.LoadOption) error
	}
	type prevLoader interface {
		LoadPreviousPage(context.Context, ...pagination.LoadOption) error
	}

	cases := []struct {
		name              string
		refetch           *artifact.Refetch
		wantNext, wantPrev bool
	}{
		{"forward cursor", forwardRefetch(), true, false},
		{"backward cursor", &artifact.Refetch{Path: []string{"friends"}, Mode: artifact.RefetchCursor, Direction: artifact.DirectionBackward, TargetType: "User"}, false, true},
		{"bidirectional cursor", &artifact.Refetch{Path: []string{"friends"}, Mode: artifact.RefetchCursor, Direction: artifact.DirectionBoth, TargetType: "User"}, true, true},
		{"offset", &artifact.Refetch{Path: []string{"friends"}, Mode: artifact.RefetchOffset, TargetType: "User"}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := c.Observe(client.ObserveArgs{Artifact: friendsArtifact(tc.refetch)})
			h, err := pagination.For(obs, c.Types())
			require.NoError(t, err)
			defer h.Close()

			_, next := h.(nextLoader)
			_, prev := h.(prevLoader)
			require.Equal(t, tc.wantNext, next, "LoadNextPage capability")
			require.Equal(t, tc.wantPrev, prev, "LoadPreviousPage capability")
		})
	}
}

func TestFor_UnpaginatedArtifact_Errors(t *testing.T) {
	c := newFriendsClient(t, "http://unused", userTypes())
	obs := c.Observe(client.ObserveArgs{Artifact: friendsArtifact(nil)})
	_, err := pagination.For(obs, c.Types())
	require.ErrorContains(t, err, "no refetch metadata")
}

func TestCursorForward_WithPageSizeOverride(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	require.NoError(t, pager.LoadNextPage(context.Background(), pagination.WithPageSize(5)))
	require.Equal(t, float64(5), received[0]["first"])
}

func TestHandler_Fetching_StaysTrueWhileAnyLoadOutstanding(t *testing.T) {
	firstArrived := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	c, err := client.New(client.Options{
		Store: cache.NewMemoryStore(),
		Types: userTypes(),
		Fetch: func(ctx context.Context, req *pipeline.Request) (*pipeline.Result, error) {
			if calls.Add(1) == 1 {
				close(firstArrived)
				<-release
			}
			return &pipeline.Result{
				Data:   map[string]any{"id": "42", "friends": map[string]any{"edges": []any{}}},
				Source: pipeline.SourceNetwork,
			}, nil
		},
	})
	require.NoError(t, err)

	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	var mu sync.Mutex
	var lastFetching bool
	stop := pager.Subscribe(func(r pagination.Result) {
		mu.Lock()
		lastFetching = r.Fetching
		mu.Unlock()
	})
	defer stop()

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- pager.LoadNextPage(ctx) }()
	<-firstArrived

	// A second load starts and settles while the first is still in the
	// network phase.
	require.NoError(t, pager.LoadNextPage(ctx))
	mu.Lock()
	require.True(t, lastFetching, "fetching must stay true while a page load is outstanding")
	mu.Unlock()

	close(release)
	require.NoError(t, <-done)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, lastFetching)
}

func TestHandler_Subscribe_CallbackMayReadPageInfo(t *testing.T) {
	var hits atomic.Int64
	srv := friendsServer(t, &hits, nil)
	defer srv.Close()

	c := newFriendsClient(t, srv.URL, userTypes())
	obs := c.Observe(client.ObserveArgs{
		Artifact:     friendsArtifact(forwardRefetch()),
		InitialValue: map[string]any{"id": "42"},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	var seen []pagination.PageInfo
	stop := pager.Subscribe(func(pagination.Result) {
		seen = append(seen, pager.PageInfo())
	})
	defer stop()

	require.NoError(t, pager.LoadNextPage(context.Background()))
	require.NotEmpty(t, seen)
	require.Equal(t, "cursor:2", seen[len(seen)-1].EndCursor)
}

func TestPagination_CustomResolver_ResolverMapNotMutated(t *testing.T) {
	var hits atomic.Int64
	var received []map[string]any
	srv := friendsServer(t, &hits, &received)
	defer srv.Close()

	shared := map[string]any{"id": "7"}
	types := typeconf.Map{}.WithResolver("User", func(map[string]any) map[string]any {
		return shared
	})
	c := newFriendsClient(t, srv.URL, types)
	obs := c.Observe(client.ObserveArgs{Artifact: friendsArtifact(forwardRefetch())})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	require.NoError(t, err)
	defer pager.Close()

	require.NoError(t, pager.LoadNextPage(context.Background()))

	// The request carried pagination variables, but the resolver's map kept
	// only what the resolver put there.
	require.Equal(t, float64(2), received[0]["first"])
	require.Equal(t, map[string]any{"id": "7"}, shared)
}
