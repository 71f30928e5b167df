package pagination

import (
	"context"
	"fmt"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/observer"
	"github.com/hanpama/graphclient/internal/typeconf"
)

// CursorForward navigates forward-only cursor pagination.
type CursorForward struct{ *handler }

// LoadNextPage fetches the page after the tracked end cursor and merges it
// into the accumulated data.
func (h *CursorForward) LoadNextPage(ctx context.Context, opts ...LoadOption) error {
	return h.loadCursor(ctx, true, opts)
}

// CursorBackward navigates backward-only cursor pagination. It deliberately
// has no LoadNextPage.
type CursorBackward struct{ *handler }

// LoadPreviousPage fetches the page before the tracked start cursor and
// merges it in front of the accumulated data.
func (h *CursorBackward) LoadPreviousPage(ctx context.Context, opts ...LoadOption) error {
	return h.loadCursor(ctx, false, opts)
}

// CursorBidirectional navigates cursor pagination in both directions.
type CursorBidirectional struct{ *handler }

func (h *CursorBidirectional) LoadNextPage(ctx context.Context, opts ...LoadOption) error {
	return h.loadCursor(ctx, true, opts)
}

func (h *CursorBidirectional) LoadPreviousPage(ctx context.Context, opts ...LoadOption) error {
	return h.loadCursor(ctx, false, opts)
}

// Offset navigates offset pagination, forward-only by design.
type Offset struct{ *handler }

// LoadNextPage fetches the next offset/limit window and appends it.
func (h *Offset) LoadNextPage(ctx context.Context, opts ...LoadOption) error {
	return h.loadOffset(ctx, opts)
}

// NewCursorForward wraps obs in a forward-only cursor handle.
func NewCursorForward(obs *observer.Observer, types typeconf.Map) (*CursorForward, error) {
	h, err := newHandler(obs, types)
	if err != nil {
		return nil, err
	}
	return &CursorForward{h}, nil
}

// NewCursorBackward wraps obs in a backward-only cursor handle.
func NewCursorBackward(obs *observer.Observer, types typeconf.Map) (*CursorBackward, error) {
	h, err := newHandler(obs, types)
	if err != nil {
		return nil, err
	}
	return &CursorBackward{h}, nil
}

// NewCursorBidirectional wraps obs in a cursor handle navigable both ways.
func NewCursorBidirectional(obs *observer.Observer, types typeconf.Map) (*CursorBidirectional, error) {
	h, err := newHandler(obs, types)
	if err != nil {
		return nil, err
	}
	return &CursorBidirectional{h}, nil
}

// NewOffset wraps obs in an offset handle.
func NewOffset(obs *observer.Observer, types typeconf.Map) (*Offset, error) {
	h, err := newHandler(obs, types)
	if err != nil {
		return nil, err
	}
	return &Offset{h}, nil
}

// For selects the handle variant matching the artifact's refetch metadata.
// The concrete type restricts navigation: asserting a backward-only handle
// to a LoadNextPage-carrying type fails.
func For(obs *observer.Observer, types typeconf.Map) (Handle, error) {
	art := obs.Artifact()
	if !art.Paginated() {
		return nil, fmt.Errorf("pagination: artifact %q carries no refetch metadata", art.Name)
	}
	switch art.Refetch.Mode {
	case artifact.RefetchOffset:
		return NewOffset(obs, types)
	case artifact.RefetchCursor:
		switch art.Refetch.Direction {
		case artifact.DirectionBackward:
			return NewCursorBackward(obs, types)
		case artifact.DirectionBoth:
			return NewCursorBidirectional(obs, types)
		default:
			return NewCursorForward(obs, types)
		}
	default:
		return nil, fmt.Errorf("pagination: artifact %q has unknown refetch mode %q", art.Name, art.Refetch.Mode)
	}
}
