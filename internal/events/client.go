// Package events declares the typed lifecycle events published by the client
// core. Subscribers attach through the eventbus; the core never depends on
// them.
package events

import "time"

// SendStart is emitted when an observer begins executing a send.
type SendStart struct {
	Artifact   string
	Kind       string
	Generation uint64
	Variables  map[string]any
}

// SendFinish is emitted after a send settles. Committed and Discarded are
// mutually exclusive; a discarded send completed fine but lost the
// generation race.
type SendFinish struct {
	Artifact   string
	Generation uint64
	Committed  bool
	Discarded  bool
	Source     string
	Err        error
	Duration   time.Duration
}

// FetchStart is emitted before the network plugin issues an HTTP request.
type FetchStart struct {
	Artifact string
	URL      string
}

// FetchFinish is emitted when the network plugin's HTTP exchange completes.
type FetchFinish struct {
	Artifact string
	URL      string
	Status   int
	Err      error
	Duration time.Duration
}

// PageLoad is emitted by pagination handlers after a page fetch settles.
type PageLoad struct {
	Artifact  string
	Direction string
	Err       error
	Duration  time.Duration
}

// CacheWrite is emitted after the cache layer persists a response.
type CacheWrite struct {
	Artifact     string
	ApplyUpdates bool
}
