// Package pipeline implements the client middleware chain: plugins with
// optional lifecycle hooks, the per-send request state, and a
// continuation-passing runner that executes the request phase forward and
// the response phase in reverse registration order.
package pipeline

import "context"

// Next continues the chain from the current hook. A hook calls it at most
// once; returning without calling it short-circuits the remaining phase.
type Next func(ctx context.Context) (*Result, error)

// Hook is one pipeline step. It may mutate req, perform blocking work, call
// next to continue, return a terminal result without calling next, or return
// an error to abort the remaining request phase.
type Hook func(ctx context.Context, req *Request, next Next) (*Result, error)

// Plugin bundles the hooks one middleware contributes. All hooks are
// optional; a nil hook is skipped.
//
// Phase order for one send:
//
//	Start (forward) → BeforeNetwork (forward) → Network (forward)
//	→ AfterNetwork (reverse) → End (reverse)
//
// Cleanup is not part of a send. It runs once, in reverse plugin order,
// when the owning observer loses its last subscriber, and must be
// idempotent.
type Plugin struct {
	Name          string
	Start         Hook
	BeforeNetwork Hook
	Network       Hook
	AfterNetwork  Hook
	End           Hook
	Cleanup       func()
}
