// Package artifact defines the compiled-operation descriptors the client
// consumes. Artifacts are produced by an external code generator; this package
// only models their shape and gives lazy access to the parsed document.
package artifact

import (
	"fmt"
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Kind identifies the operation category an artifact was compiled from.
type Kind string

const (
	KindQuery        Kind = "query"
	KindMutation     Kind = "mutation"
	KindFragment     Kind = "fragment"
	KindSubscription Kind = "subscription"
)

// RefetchMode selects the pagination scheme declared on a paginated document.
type RefetchMode string

const (
	RefetchCursor RefetchMode = "cursor"
	RefetchOffset RefetchMode = "offset"
)

// RefetchDirection restricts which navigation operations a paginated
// document supports.
type RefetchDirection string

const (
	DirectionForward  RefetchDirection = "forward"
	DirectionBackward RefetchDirection = "backward"
	DirectionBoth     RefetchDirection = "both"
)

// Refetch carries the pagination metadata the compiler attached to a
// paginated query or fragment.
type Refetch struct {
	// Path locates the paginated connection field inside the response tree.
	Path []string
	// Mode is cursor or offset.
	Mode RefetchMode
	// Direction is forward, backward or both. Offset mode is always forward.
	Direction RefetchDirection
	// PageSize is the default page size when a load gives no override.
	PageSize int
	// TargetType names the type whose configuration resolves identity
	// variables for refetches.
	TargetType string
	// Start is the initial cursor (cursor mode) or base offset (offset mode).
	Start any
	// Embedded reports whether the paginated field lives inside a fragment
	// rather than at the query root.
	Embedded bool
}

// Input describes the variables an artifact accepts. Types holds the field
// types of input-object definitions referenced from Fields.
type Input struct {
	Fields   map[string]*TypeRef
	Defaults map[string]any
	Types    map[string]map[string]*TypeRef
}

// Artifact is one compiled GraphQL document plus its metadata. The Raw text
// is authoritative; the parsed document is derived on first use.
type Artifact struct {
	Name    string
	Kind    Kind
	Raw     string
	Input   *Input
	Refetch *Refetch

	once sync.Once
	doc  *ast.QueryDocument
	err  error
}

// Document parses Raw once and returns the query document.
func (a *Artifact) Document() (*ast.QueryDocument, error) {
	a.once.Do(func() {
		a.doc, a.err = parser.ParseQuery(&ast.Source{Name: a.Name, Input: a.Raw})
	})
	if a.err != nil {
		return nil, fmt.Errorf("artifact %q: %w", a.Name, a.err)
	}
	return a.doc, nil
}

// Operation returns the sole operation definition of the document. Fragment
// artifacts compile to a synthetic refetch query, so every artifact carries
// exactly one operation.
func (a *Artifact) Operation() (*ast.OperationDefinition, error) {
	doc, err := a.Document()
	if err != nil {
		return nil, err
	}
	if len(doc.Operations) == 0 {
		return nil, fmt.Errorf("artifact %q: document has no operation", a.Name)
	}
	return doc.Operations[0], nil
}

// Paginated reports whether the artifact declares refetch metadata.
func (a *Artifact) Paginated() bool { return a.Refetch != nil }
