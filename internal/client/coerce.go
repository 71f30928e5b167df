package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hanpama/graphclient/internal/artifact"
	"github.com/hanpama/graphclient/internal/pipeline"
)

// coercionPlugin normalizes send variables against the artifact's declared
// input types before any other plugin sees them. Coercion failures abort the
// send; they indicate a caller bug, not a transient fault.
func coercionPlugin() pipeline.Plugin {
	return pipeline.Plugin{
		Name: "coerce",
		Start: func(ctx context.Context, req *pipeline.Request, next pipeline.Next) (*pipeline.Result, error) {
			coerced, err := coerceVariables(req.Artifact, req.Variables)
			if err != nil {
				return nil, err
			}
			req.Variables = coerced
			return next(ctx)
		},
	}
}

func coerceVariables(art *artifact.Artifact, variables map[string]any) (map[string]any, error) {
	if art.Input == nil {
		return variables, nil
	}
	if variables == nil {
		variables = map[string]any{}
	}
	coerced := make(map[string]any, len(art.Input.Fields))
	for name, t := range art.Input.Fields {
		val, ok := variables[name]
		if !ok {
			if def, hasDefault := art.Input.Defaults[name]; hasDefault {
				val = def
			} else if t.IsNonNull() {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t)
			} else {
				continue
			}
		}
		cv, err := coerceValue(art.Input, val, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %w", name, t, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceValue coerces a value to the given type reference, unwrapping
// non-null and list modifiers and descending into declared input objects.
func coerceValue(in *artifact.Input, value any, t *artifact.TypeRef) (any, error) {
	if t.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(in, value, t.Unwrap())
	}
	if value == nil {
		return nil, nil
	}
	if t.IsList() {
		return coerceListValue(in, value, t)
	}

	named := t.NamedTypeName()
	if fields, ok := in.Types[named]; ok {
		return coerceInputObject(in, value, named, fields)
	}
	switch named {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		// Custom scalars and enums pass through untouched.
		return value, nil
	}
}

func coerceListValue(in *artifact.Input, value any, t *artifact.TypeRef) (any, error) {
	inner := t.Unwrap()
	if slice, ok := value.([]any); ok {
		out := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(in, item, inner)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	// A single value coerces to a one-element list.
	cv, err := coerceValue(in, value, inner)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func coerceInputObject(in *artifact.Input, value any, typeName string, fields map[string]*artifact.TypeRef) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected input object for %s, got %T", typeName, value)
	}
	out := make(map[string]any, len(m))
	for name, ft := range fields {
		fv, present := m[name]
		if !present {
			if ft.IsNonNull() {
				return nil, fmt.Errorf("required field '%s' of %s was not provided", name, typeName)
			}
			continue
		}
		cv, err := coerceValue(in, fv, ft)
		if err != nil {
			return nil, fmt.Errorf("field '%s' of %s: %w", name, typeName, err)
		}
		out[name] = cv
	}
	for name := range m {
		if _, declared := fields[name]; !declared {
			return nil, fmt.Errorf("unknown field '%s' on input object %s", name, typeName)
		}
	}
	return out, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case string:
		if iv, err := strconv.Atoi(v); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
}

// coerceToID accepts strings and integers, serializing integers to strings
// per the ID scalar contract.
func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}
