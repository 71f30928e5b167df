// Package observer implements the live handle around one artifact's repeated
// executions: it runs the assembled plugin chain per send, keeps the latest
// committed result, and fans committed updates out to subscribers.
//
// Concurrent sends are coalesced by a monotonic generation token: every send
// draws a fresh token, and a result only commits while its token is higher
// than the last committed one. A send that loses the race still resolves for
// its own caller; it just never reaches subscribers.
package observer

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/eventbus"
	"github.com/hanpama/graphclient/internal/events"
	"github.com/hanpama/graphclient/internal/pipeline"
	"github.com/hanpama/graphclient/internal/reqid"
)

// WatchFunc starts watching the cache layer for writes to the observed
// document made under other origins and returns a stop function. The
// observer installs it when the first subscriber arrives and stops it when
// the last one leaves.
type WatchFunc func(origin string, notify func(data map[string]any)) (stop func())

// Options configures a new Observer.
type Options struct {
	Artifact *artifact.Artifact
	Chain    pipeline.Chain
	// Fetch is the transport template cloned into every request.
	Fetch pipeline.FetchOptions
	// Policy is the default fetch policy when a send gives none.
	Policy pipeline.FetchPolicy
	// Watch, when non-nil, connects cache change notification.
	Watch WatchFunc
	// InitialValue seeds the latest result before any send, e.g. a fragment's
	// cached parent value.
	InitialValue map[string]any
}

// SendArgs parameterizes one pipeline execution.
type SendArgs struct {
	Variables   map[string]any
	Policy      pipeline.FetchPolicy
	CacheParams pipeline.CacheParams
	Session     pipeline.Session
}

type subscription struct {
	id int
	fn func(*pipeline.Result)
}

// Observer executes the chain for one artifact and broadcasts committed
// results in commit order.
type Observer struct {
	id     string
	art    *artifact.Artifact
	chain  pipeline.Chain
	fetch  pipeline.FetchOptions
	policy pipeline.FetchPolicy
	watch  WatchFunc

	nextGen  atomic.Uint64
	inflight atomic.Int64
	latest   atomic.Pointer[pipeline.Result]

	mu           sync.Mutex // serializes commit+notify and subscriber changes
	committedGen uint64
	nextSubID    int
	subs         []subscription
	stopWatch    func()
}

// New creates an Observer. The chain is shared and immutable; all mutable
// state is per observer.
func New(opts Options) *Observer {
	o := &Observer{
		id:     uuid.NewString(),
		art:    opts.Artifact,
		chain:  opts.Chain,
		fetch:  opts.Fetch,
		policy: opts.Policy,
		watch:  opts.Watch,
	}
	if o.policy == "" {
		o.policy = pipeline.CacheOrNetwork
	}
	if opts.InitialValue != nil {
		o.latest.Store(&pipeline.Result{Data: opts.InitialValue, Source: pipeline.SourceCache})
	}
	return o
}

// Artifact returns the observed artifact.
func (o *Observer) Artifact() *artifact.Artifact { return o.art }

// Latest returns the most recently committed result, or nil before the
// first commit.
func (o *Observer) Latest() *pipeline.Result { return o.latest.Load() }

// Fetching reports whether any send is currently in flight.
func (o *Observer) Fetching() bool { return o.inflight.Load() > 0 }

// Send executes the pipeline once. The returned result is always this send's
// own outcome, whether or not it was committed; a hook error surfaces as the
// returned error and leaves the last committed value untouched.
func (o *Observer) Send(ctx context.Context, args SendArgs) (*pipeline.Result, error) {
	gen := o.nextGen.Add(1)
	ctx, _ = reqid.NewContext(ctx)

	policy := args.Policy
	if policy == "" {
		policy = o.policy
	}
	req := &pipeline.Request{
		Artifact:    o.art,
		Variables:   args.Variables,
		Policy:      policy,
		CacheParams: args.CacheParams,
		Session:     args.Session,
		Fetch:       o.fetch,
		Generation:  gen,
		Origin:      o.id,
	}

	eventbus.Publish(ctx, events.SendStart{
		Artifact:   o.art.Name,
		Kind:       string(o.art.Kind),
		Generation: gen,
		Variables:  args.Variables,
	})
	start := time.Now()
	o.inflight.Add(1)
	res, err := o.chain.Run(ctx, req)
	o.inflight.Add(-1)

	if err != nil {
		eventbus.Publish(ctx, events.SendFinish{
			Artifact: o.art.Name, Generation: gen, Err: err, Duration: time.Since(start),
		})
		return nil, err
	}

	committed := o.commit(gen, res)
	eventbus.Publish(ctx, events.SendFinish{
		Artifact:   o.art.Name,
		Generation: gen,
		Committed:  committed,
		Discarded:  !committed,
		Source:     string(res.Source),
		Duration:   time.Since(start),
	})
	return res, nil
}

// commit installs res as the latest value and notifies subscribers, unless a
// higher generation already committed. Notification runs under the commit
// mutex so subscribers observe commits in a single total order; callbacks
// must not call Send or Subscribe synchronously.
func (o *Observer) commit(gen uint64, res *pipeline.Result) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen <= o.committedGen {
		return false
	}
	o.committedGen = gen
	o.latest.Store(res)
	for _, s := range o.subs {
		s.fn(res)
	}
	return true
}

// Subscribe registers fn for every committed update and replays the current
// value immediately when one exists. When the last subscriber unsubscribes,
// cache watching stops and every plugin's Cleanup hook runs in reverse
// plugin order. The returned function is idempotent.
func (o *Observer) Subscribe(fn func(*pipeline.Result)) (unsubscribe func()) {
	o.mu.Lock()
	o.nextSubID++
	id := o.nextSubID
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	first := len(o.subs) == 1
	if cur := o.latest.Load(); cur != nil {
		fn(cur)
	}
	o.mu.Unlock()

	if first && o.watch != nil {
		stop := o.watch(o.id, o.applyExternal)
		o.mu.Lock()
		o.stopWatch = stop
		o.mu.Unlock()
	}

	var once sync.Once
	return func() { once.Do(func() { o.drop(id) }) }
}

func (o *Observer) drop(id int) {
	o.mu.Lock()
	for i := range o.subs {
		if o.subs[i].id == id {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			break
		}
	}
	empty := len(o.subs) == 0
	stop := o.stopWatch
	if empty {
		o.stopWatch = nil
	}
	o.mu.Unlock()

	if empty {
		if stop != nil {
			stop()
		}
		o.chain.Cleanup()
	}
}

// applyExternal commits a cache-originated update under a fresh generation.
// Identical consecutive values are dropped so that an observer's own
// write-back does not echo a duplicate notification.
func (o *Observer) applyExternal(data map[string]any) {
	if cur := o.latest.Load(); cur != nil && reflect.DeepEqual(cur.Data, data) {
		return
	}
	gen := o.nextGen.Add(1)
	o.commit(gen, &pipeline.Result{Data: data, Source: pipeline.SourceCache})
}
