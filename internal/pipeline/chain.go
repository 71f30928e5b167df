package pipeline

import (
	"context"
	"errors"
)

// ErrExhausted is returned when the request phase runs out of hooks without
// any of them producing a result. The assembler prevents this by always
// placing a network plugin last.
var ErrExhausted = errors.New("pipeline exhausted without a network result")

type step struct {
	plugin string
	hook   Hook
}

// Chain is the executable form of an assembled plugin list. It is immutable
// and safe for concurrent runs; all per-send state lives in the Request.
type Chain struct {
	plugins  []Plugin
	request  []step // Start.. then BeforeNetwork.. then Network.., forward
	response []step // AfterNetwork.. then End.., reverse
}

// NewChain precomputes the phase step lists for the given plugin order.
func NewChain(plugins []Plugin) Chain {
	c := Chain{plugins: plugins}
	for _, phase := range []func(Plugin) Hook{
		func(p Plugin) Hook { return p.Start },
		func(p Plugin) Hook { return p.BeforeNetwork },
		func(p Plugin) Hook { return p.Network },
	} {
		for _, p := range plugins {
			if h := phase(p); h != nil {
				c.request = append(c.request, step{plugin: p.Name, hook: h})
			}
		}
	}
	for _, phase := range []func(Plugin) Hook{
		func(p Plugin) Hook { return p.AfterNetwork },
		func(p Plugin) Hook { return p.End },
	} {
		for i := len(plugins) - 1; i >= 0; i-- {
			if h := phase(plugins[i]); h != nil {
				c.response = append(c.response, step{plugin: plugins[i].Name, hook: h})
			}
		}
	}
	return c
}

// Plugins returns the ordered plugin list the chain was built from.
func (c Chain) Plugins() []Plugin { return c.plugins }

// Run executes one send through the chain. The request phase walks forward
// until a hook produces a result or fails; the response phase then walks the
// AfterNetwork/End hooks in reverse registration order. On a request-phase
// error the response phase still runs, with req.Err set, so plugins can
// release per-send resources; the original error is returned.
func (c Chain) Run(ctx context.Context, req *Request) (*Result, error) {
	res, err := call(ctx, req, c.request, 0, func(context.Context) (*Result, error) {
		return nil, ErrExhausted
	})
	if err != nil {
		req.Err = err
		_, _ = call(ctx, req, c.response, 0, func(context.Context) (*Result, error) {
			return req.Result, nil
		})
		return nil, err
	}

	req.Result = res
	res, err = call(ctx, req, c.response, 0, func(context.Context) (*Result, error) {
		return req.Result, nil
	})
	if err != nil {
		return nil, err
	}
	if res != nil {
		req.Result = res
	}
	return req.Result, nil
}

// Cleanup invokes every plugin's Cleanup hook in reverse registration order.
func (c Chain) Cleanup() {
	for i := len(c.plugins) - 1; i >= 0; i-- {
		if c.plugins[i].Cleanup != nil {
			c.plugins[i].Cleanup()
		}
	}
}

// call is the continuation-passing walker shared by both phases. terminal
// runs when the step list is exhausted.
func call(ctx context.Context, req *Request, steps []step, i int, terminal Next) (*Result, error) {
	if i >= len(steps) {
		return terminal(ctx)
	}
	next := func(ctx context.Context) (*Result, error) {
		return call(ctx, req, steps, i+1, terminal)
	}
	return steps[i].hook(ctx, req, next)
}
