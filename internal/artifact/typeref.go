package artifact

// TypeRef references a GraphQL input type, possibly wrapped in list or
// non-null modifiers.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // for LIST and NON_NULL
	Named  string   // for NAMED
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// NamedType builds a reference to a named type.
func NamedType(name string) *TypeRef {
	return &TypeRef{Kind: TypeRefKindNamed, Named: name}
}

// ListType wraps inner in a list modifier.
func ListType(inner *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeRefKindList, OfType: inner}
}

// NonNullType wraps inner in a non-null modifier.
func NonNullType(inner *TypeRef) *TypeRef {
	return &TypeRef{Kind: TypeRefKindNonNull, OfType: inner}
}

func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == TypeRefKindList {
		return true
	}
	return t.Kind == TypeRefKindNonNull && t.OfType != nil && t.OfType.Kind == TypeRefKindList
}

// Unwrap strips one list or non-null modifier.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

// NamedTypeName walks to the innermost named type.
func (t *TypeRef) NamedTypeName() string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Named != "" {
			return cur.Named
		}
	}
	return ""
}

func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Named
	}
}
