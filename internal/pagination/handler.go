// Package pagination wraps a document observer with page-navigation
// operations. Handles share one core that resolves identity variables,
// tracks page-info and the fetching flag, and broadcasts a derived result;
// capability wrappers decide which navigation methods exist, so a
// backward-only handle simply has no LoadNextPage.
package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/observer"
	"github.com/hanpama/graphclient/internal/pipeline"
	"github.com/hanpama/graphclient/internal/typeconf"
)

// Result is the read-only projection a pagination handle broadcasts:
// the observer's latest data combined with pagination metadata.
type Result struct {
	Data     map[string]any
	Fetching bool
	PageInfo *PageInfo
}

// Handle is the operation set common to every pagination variant.
type Handle interface {
	// Subscribe registers fn for every derived update and returns an
	// idempotent unsubscribe function. fn may read PageInfo, but must not
	// call Fetch or a load method synchronously: update callbacks run while
	// the committing observer holds its lock.
	Subscribe(fn func(Result)) (unsubscribe func())
	// Fetch reloads the document non-incrementally with the current
	// identity variables, replacing accumulated data.
	Fetch(ctx context.Context, opts ...LoadOption) (*pipeline.Result, error)
	// PageInfo returns the current cursor bookkeeping.
	PageInfo() PageInfo
	// Close releases the handle's observer subscription.
	Close()
}

// LoadOption tunes one page load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	pageSize *int
	cursor   string
	session  pipeline.Session
}

// WithPageSize overrides the artifact's default page size for this load.
func WithPageSize(n int) LoadOption { return func(o *loadOptions) { o.pageSize = &n } }

// WithCursor pins the cursor for this load instead of the tracked one.
func WithCursor(c string) LoadOption { return func(o *loadOptions) { o.cursor = c } }

// WithSession threads session values into the load's pipeline run.
func WithSession(s pipeline.Session) LoadOption { return func(o *loadOptions) { o.session = s } }

// handler is the shared core behind every variant.
type handler struct {
	obs   *observer.Observer
	art   *artifact.Artifact
	types typeconf.Map

	mu       sync.Mutex
	pageInfo PageInfo
	fetching int // outstanding loads; concurrent loads are allowed
	offset   int // items loaded so far, offset mode only
	nextSub  int
	subs     map[int]func(Result)
	stopObs  func()
}

func newHandler(obs *observer.Observer, types typeconf.Map) (*handler, error) {
	art := obs.Artifact()
	if !art.Paginated() {
		return nil, fmt.Errorf("pagination: artifact %q carries no refetch metadata", art.Name)
	}
	h := &handler{obs: obs, art: art, types: types, subs: make(map[int]func(Result))}
	h.stopObs = obs.Subscribe(h.onCommit)
	return h, nil
}

// onCommit recomputes derived state from a committed observer result and
// broadcasts it. The cache already merged page-info direction-aware, so the
// committed tree is the single authority here.
func (h *handler) onCommit(res *pipeline.Result) {
	h.mu.Lock()
	if pi, ok := pageInfoAt(res.Data, h.art.Refetch.Path); ok {
		h.pageInfo = pi
	}
	out := Result{Data: res.Data, Fetching: h.fetching > 0, PageInfo: h.pageInfoRefLocked()}
	subs := h.subscribersLocked()
	h.mu.Unlock()
	for _, fn := range subs {
		fn(out)
	}
}

func (h *handler) pageInfoRefLocked() *PageInfo {
	if h.art.Refetch.Mode != artifact.RefetchCursor {
		return nil
	}
	pi := h.pageInfo
	return &pi
}

func (h *handler) subscribersLocked() []func(Result) {
	out := make([]func(Result), 0, len(h.subs))
	for _, fn := range h.subs {
		out = append(out, fn)
	}
	return out
}

// Subscribe implements Handle. The initial snapshot is delivered outside the
// handler lock so the callback may read PageInfo.
func (h *handler) Subscribe(fn func(Result)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextSub++
	id := h.nextSub
	h.subs[id] = fn
	snap := h.snapshotLocked()
	h.mu.Unlock()
	fn(snap)
	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *handler) snapshotLocked() Result {
	out := Result{Fetching: h.fetching > 0, PageInfo: h.pageInfoRefLocked()}
	if res := h.obs.Latest(); res != nil {
		out.Data = res.Data
	}
	return out
}

// PageInfo implements Handle.
func (h *handler) PageInfo() PageInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pageInfo
}

// Close implements Handle.
func (h *handler) Close() {
	if h.stopObs != nil {
		h.stopObs()
	}
}

// setFetching adjusts the outstanding-load count and broadcasts the derived
// result so subscribers render loading states. The broadcast Fetching flag
// stays true until the last overlapping load settles.
func (h *handler) setFetching(active bool) {
	h.mu.Lock()
	if active {
		h.fetching++
	} else {
		h.fetching--
	}
	out := h.snapshotLocked()
	subs := h.subscribersLocked()
	h.mu.Unlock()
	for _, fn := range subs {
		fn(out)
	}
}

// identityVariables resolves the variables that re-identify the paginated
// entity, before any page fetch. A missing type configuration is a fatal
// configuration error and must surface before any network request.
func (h *handler) identityVariables() (map[string]any, error) {
	rf := h.art.Refetch
	cfg, err := h.types.For(rf.TargetType)
	if err != nil {
		return nil, err
	}
	var value map[string]any
	if res := h.obs.Latest(); res != nil {
		value = res.Data
	}
	if cfg.Resolve != nil && cfg.Resolve.Arguments != nil {
		// Copy before the load adds pagination variables: the resolver may
		// hand back a map it still owns.
		args := cfg.Resolve.Arguments(value)
		vars := make(map[string]any, len(args)+2)
		for k, v := range args {
			vars[k] = v
		}
		return vars, nil
	}
	vars := make(map[string]any, len(cfg.Keys))
	for _, k := range cfg.Keys {
		v, ok := value[k]
		if !ok {
			return nil, fmt.Errorf("pagination: cached value has no key field %q for type %q", k, rf.TargetType)
		}
		vars[k] = v
	}
	return vars, nil
}

// Fetch implements Handle: a full, non-incremental reload.
func (h *handler) Fetch(ctx context.Context, opts ...LoadOption) (*pipeline.Result, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	vars, err := h.identityVariables()
	if err != nil {
		return nil, err
	}
	h.setFetching(true)
	defer h.setFetching(false)
	res, err := h.obs.Send(ctx, observer.SendArgs{
		Variables: vars,
		Policy:    pipeline.NetworkOnly,
		Session:   o.session,
	})
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.offset = 0
	h.mu.Unlock()
	return res, nil
}

// loadCursor performs one cursor page load in the given direction. Page
// loads always hit the network and apply updates so the cache accumulates
// pages instead of replacing them.
func (h *handler) loadCursor(ctx context.Context, forward bool, opts []LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	rf := h.art.Refetch

	vars, err := h.identityVariables()
	if err != nil {
		return err
	}

	size := rf.PageSize
	if o.pageSize != nil {
		size = *o.pageSize
	}
	h.mu.Lock()
	cursor := o.cursor
	if cursor == "" {
		if forward {
			cursor = h.pageInfo.EndCursor
		} else {
			cursor = h.pageInfo.StartCursor
		}
	}
	h.mu.Unlock()
	if cursor == "" {
		if s, ok := rf.Start.(string); ok {
			cursor = s
		}
	}

	at := pipeline.PositionTail
	if forward {
		vars["first"] = size
		if cursor != "" {
			vars["after"] = cursor
		}
	} else {
		at = pipeline.PositionHead
		vars["last"] = size
		if cursor != "" {
			vars["before"] = cursor
		}
	}

	direction := "forward"
	if !forward {
		direction = "backward"
	}
	h.setFetching(true)
	defer h.setFetching(false)
	start := time.Now()
	_, err = h.obs.Send(ctx, observer.SendArgs{
		Variables:   vars,
		Policy:      pipeline.NetworkOnly,
		CacheParams: pipeline.CacheParams{ApplyUpdates: true, At: at},
		Session:     o.session,
	})
	eventbus.Publish(ctx, events.PageLoad{
		Artifact: h.art.Name, Direction: direction, Err: err, Duration: time.Since(start),
	})
	return err
}

// loadOffset performs one offset page load. The running offset advances by
// the requested limit on success; offset pagination is forward-only.
func (h *handler) loadOffset(ctx context.Context, opts []LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	rf := h.art.Refetch

	vars, err := h.identityVariables()
	if err != nil {
		return err
	}

	size := rf.PageSize
	if o.pageSize != nil {
		size = *o.pageSize
	}
	base := 0
	if b, ok := rf.Start.(int); ok {
		base = b
	}
	h.mu.Lock()
	vars["offset"] = base + h.offset
	h.mu.Unlock()
	vars["limit"] = size

	h.setFetching(true)
	defer h.setFetching(false)
	start := time.Now()
	_, err = h.obs.Send(ctx, observer.SendArgs{
		Variables:   vars,
		Policy:      pipeline.NetworkOnly,
		CacheParams: pipeline.CacheParams{ApplyUpdates: true, At: pipeline.PositionTail},
		Session:     o.session,
	})
	eventbus.Publish(ctx, events.PageLoad{
		Artifact: h.art.Name, Direction: "forward", Err: err, Duration: time.Since(start),
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.offset += size
	h.mu.Unlock()
	return nil
}
