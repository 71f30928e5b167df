// Package typeconf holds the per-type configuration the pagination layer
// uses to re-resolve paginated entities: key fields and optional custom
// argument resolvers. The key lists come from the code generator's config
// file; resolver functions are registered in code.
package typeconf

import "fmt"

// DocsURL points at the configuration reference included in diagnostics for
// missing type entries.
const DocsURL = "https://github.com/hanpama/graphclient#type-configuration"

// Resolve customizes how identity variables are derived for a type.
type Resolve struct {
	// Arguments computes extra refetch variables from the current cached
	// value. When set it replaces key-field extraction entirely.
	Arguments func(value map[string]any) map[string]any
}

// Config describes one type.
type Config struct {
	// Keys are the fields that identify an entity of this type.
	Keys []string
	// Resolve, when non-nil, overrides key-based variable derivation.
	Resolve *Resolve
}

// Map indexes type configurations by GraphQL type name.
type Map map[string]Config

// MissingTypeError reports a type with no configuration entry. This is a
// build-time mismatch between generated artifacts and config, never a
// transient fault.
type MissingTypeError struct {
	Type string
}

func (e *MissingTypeError) Error() string {
	return fmt.Sprintf(
		"no type configuration for %q: paginated documents need a 'keys' entry (or a custom resolver) for their target type; see %s",
		e.Type, DocsURL,
	)
}

// For looks up the configuration for typeName.
func (m Map) For(typeName string) (Config, error) {
	cfg, ok := m[typeName]
	if !ok {
		return Config{}, &MissingTypeError{Type: typeName}
	}
	return cfg, nil
}

// WithResolver returns a copy of m with a custom argument resolver attached
// to typeName. The entry is created if absent.
func (m Map) WithResolver(typeName string, fn func(map[string]any) map[string]any) Map {
	out := make(Map, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	cfg := out[typeName]
	cfg.Resolve = &Resolve{Arguments: fn}
	out[typeName] = cfg
	return out
}
