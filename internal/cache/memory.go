package cache

import (
	"sync"

	"github.com/hanpama/graphclient/internal/artifact"
)

// MemoryStore is the in-memory reference implementation of Store. It is
// document-grained: entries are whole response trees keyed by artifact +
// identity variables, and change notification is per artifact name.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]any
	nextSub int
	subs    map[string][]memorySub // artifact name -> subscribers
}

type memorySub struct {
	id     int
	origin string
	fn     func(map[string]any)
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[string]any),
		subs:    make(map[string][]memorySub),
	}
}

// Read implements Store.
func (s *MemoryStore) Read(art *artifact.Artifact, variables map[string]any) (map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[IdentityKey(art, variables)]
	if !ok {
		return nil, false
	}
	return deepCopyMap(data), true
}

// Write implements Store. The merged view is computed against a copy and
// swapped in whole, so a failed merge never corrupts accumulated pages.
func (s *MemoryStore) Write(art *artifact.Artifact, variables map[string]any, data map[string]any, params WriteParams) (map[string]any, error) {
	key := IdentityKey(art, variables)

	s.mu.Lock()
	var view map[string]any
	if params.ApplyUpdates {
		view = Merge(s.entries[key], data, params.At)
	} else {
		view = deepCopyMap(data)
	}
	s.entries[key] = view
	notify := make([]func(map[string]any), 0, len(s.subs[art.Name]))
	for _, sub := range s.subs[art.Name] {
		if params.Origin != "" && sub.origin == params.Origin {
			continue
		}
		notify = append(notify, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range notify {
		fn(deepCopyMap(view))
	}
	return deepCopyMap(view), nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(artifactName, origin string, fn func(map[string]any)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[artifactName] = append(s.subs[artifactName], memorySub{id: id, origin: origin, fn: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		hs := s.subs[artifactName]
		for i := range hs {
			if hs[i].id == id {
				hs = append(hs[:i], hs[i+1:]...)
				break
			}
		}
		if len(hs) == 0 {
			delete(s.subs, artifactName)
		} else {
			s.subs[artifactName] = hs
		}
	}
}
