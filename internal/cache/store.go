// Package cache defines the contract the client expects from a cache layer
// and ships an in-memory reference store. The reference store keys entries by
// artifact plus identity variables so successive pagination loads of one
// document accumulate into a single entry.
package cache

import (
	"encoding/json"
	"sort"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/pipeline"
)

// WriteParams mirrors the cacheParams of the send that produced the data.
type WriteParams struct {
	// ApplyUpdates merges the incoming data into the existing entry instead
	// of replacing it.
	ApplyUpdates bool
	// At is where merged list items land. Zero value means tail.
	At pipeline.Position
	// Origin identifies the writing observer; subscribers registered under
	// the same origin are not notified of this write.
	Origin string
}

// Store is the cache collaborator contract. Implementations must keep Write
// atomic per call: either the whole merged view replaces the entry or the
// entry is left untouched.
type Store interface {
	// Read returns the cached data for the document identified by the
	// artifact and its identity variables.
	Read(art *artifact.Artifact, variables map[string]any) (map[string]any, bool)

	// Write persists data for the document and returns the resulting view
	// (the merged accumulation when ApplyUpdates is set).
	Write(art *artifact.Artifact, variables map[string]any, data map[string]any, params WriteParams) (map[string]any, error)

	// Subscribe registers fn to run after every write touching the named
	// artifact, except writes carrying the same non-empty origin. The
	// callback receives the post-write view.
	Subscribe(artifactName, origin string, fn func(data map[string]any)) (unsubscribe func())
}

// paginationArgs are stripped from variables when deriving an entry key, so
// that page loads with moving cursors address the same entry.
var paginationArgs = map[string]struct{}{
	"first": {}, "after": {}, "last": {}, "before": {}, "offset": {}, "limit": {},
}

// IdentityKey derives the stable entry key for an artifact + variables pair.
func IdentityKey(art *artifact.Artifact, variables map[string]any) string {
	names := make([]string, 0, len(variables))
	for name := range variables {
		if _, skip := paginationArgs[name]; skip && art.Paginated() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	ident := make(map[string]any, len(names))
	for _, name := range names {
		ident[name] = variables[name]
	}
	b, _ := json.Marshal(ident)
	return art.Name + "\x00" + string(b)
}
