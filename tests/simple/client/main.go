// Command client is a runnable demo: it serves a tiny in-process GraphQL
// endpoint with a paginated friend list, then drives a paginated query
// against it through the full client pipeline with logging and metrics
// attached.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/rs/zerolog"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/cache"
	"github.com/hanpama/graphclient/internal/client"
	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/logging"
	"github.com/hanpama/graphclient/internal/metrics"
	"github.com/hanpama/graphclient/internal/otel"
	"github.com/hanpama/graphclient/internal/pagination"
	"github.com/hanpama/graphclient/internal/typeconf"
)

var friends = []string{"Ada", "Blaise", "Charles", "Grace", "Kurt", "Sophie"}

func serve() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		first := 2
		if v, ok := req.Variables["first"].(float64); ok {
			first = int(v)
		}
		start := 0
		if after, ok := req.Variables["after"].(string); ok {
			fmt.Sscanf(after, "cursor:%d", &start)
		}
		end := start + first
		if end > len(friends) {
			end = len(friends)
		}

		edges := make([]any, 0, first)
		for i := start; i < end; i++ {
			edges = append(edges, map[string]any{
				"cursor": fmt.Sprintf("cursor:%d", i+1),
				"node":   map[string]any{"id": fmt.Sprintf("u-%d", i+1), "name": friends[i]},
			})
		}
		resp := map[string]any{
			"data": map[string]any{
				"node": map[string]any{
					"id": "u-0",
					"friends": map[string]any{
						"edges": edges,
						"pageInfo": map[string]any{
							"startCursor": fmt.Sprintf("cursor:%d", start+1),
							"endCursor":   fmt.Sprintf("cursor:%d", end),
							"hasNextPage": end < len(friends),
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func main() {
	pageSize := flag.Int("page-size", 2, "friends per page")
	otlpEndpoint := flag.String("otlp-endpoint", "", "OTLP trace collector endpoint (empty disables tracing)")
	otlpService := flag.String("otlp-service", "graphclient-demo", "service name for exported traces")
	flag.Parse()

	bus := eventbus.New()
	eventbus.Use(bus)
	detachLog := logging.Attach(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel))
	defer detachLog()
	detachMetrics := metrics.Register()
	defer detachMetrics()
	shutdown, err := otel.Setup(*otlpEndpoint, *otlpService)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	srv := serve()
	defer srv.Close()

	art := &artifact.Artifact{
		Name: "UserFriends",
		Kind: artifact.KindQuery,
		Raw: `query UserFriends($id: ID!, $first: Int, $after: String) {
  node(id: $id) { id friends(first: $first, after: $after) { edges { cursor node { id name } } pageInfo { startCursor endCursor hasNextPage hasPreviousPage } } }
}`,
		Input: &artifact.Input{
			Fields: map[string]*artifact.TypeRef{
				"id":    artifact.NonNullType(artifact.NamedType("ID")),
				"first": artifact.NamedType("Int"),
				"after": artifact.NamedType("String"),
			},
		},
		Refetch: &artifact.Refetch{
			Path:       []string{"node", "friends"},
			Mode:       artifact.RefetchCursor,
			Direction:  artifact.DirectionForward,
			PageSize:   *pageSize,
			TargetType: "User",
		},
	}

	// The response keeps the node envelope, so identity variables come from
	// a custom resolver instead of root-level key fields.
	types := typeconf.Map{"User": {Keys: []string{"id"}}}.WithResolver("User",
		func(value map[string]any) map[string]any {
			if node, ok := value["node"].(map[string]any); ok {
				return map[string]any{"id": node["id"]}
			}
			return map[string]any{"id": "u-0"}
		})

	c, err := client.New(client.Options{
		URL:   srv.URL,
		Store: cache.NewMemoryStore(),
		Types: types,
	})
	if err != nil {
		log.Fatal(err)
	}

	obs := c.Observe(client.ObserveArgs{
		Artifact:     art,
		InitialValue: map[string]any{"node": map[string]any{"id": "u-0"}},
	})
	pager, err := pagination.NewCursorForward(obs, c.Types())
	if err != nil {
		log.Fatal(err)
	}
	defer pager.Close()

	stop := pager.Subscribe(func(r pagination.Result) {
		if r.Fetching || r.Data == nil {
			return
		}
		b, _ := json.Marshal(r.Data)
		fmt.Printf("data: %s\n", b)
		if r.PageInfo != nil {
			fmt.Printf("pageInfo: %+v\n", *r.PageInfo)
		}
	})
	defer stop()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := pager.LoadNextPage(ctx); err != nil {
			log.Fatal(err)
		}
		if !pager.PageInfo().HasNextPage {
			break
		}
	}
}
