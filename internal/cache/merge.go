package cache

import "github.com/hanpama/graphclient/internal/pipeline"

// Merge combines an incoming response tree into an existing one without
// mutating either input. Maps merge recursively, lists accumulate (append at
// tail, prepend at head), and pageInfo objects merge direction-aware: a tail
// merge takes endCursor/hasNextPage from the new page and keeps the old
// start side, and symmetrically for head merges. Scalar conflicts resolve to
// the incoming value.
func Merge(existing, incoming map[string]any, at pipeline.Position) map[string]any {
	if existing == nil {
		return deepCopyMap(incoming)
	}
	out := deepCopyMap(existing)
	for key, newVal := range incoming {
		oldVal, ok := out[key]
		if !ok {
			out[key] = deepCopyValue(newVal)
			continue
		}
		oldMap, oldIsMap := oldVal.(map[string]any)
		newMap, newIsMap := newVal.(map[string]any)
		if oldIsMap && newIsMap {
			if key == "pageInfo" {
				out[key] = mergePageInfo(oldMap, newMap, at)
			} else {
				out[key] = Merge(oldMap, newMap, at)
			}
			continue
		}
		oldList, oldIsList := oldVal.([]any)
		newList, newIsList := newVal.([]any)
		if oldIsList && newIsList {
			out[key] = mergeLists(oldList, newList, at)
			continue
		}
		out[key] = deepCopyValue(newVal)
	}
	return out
}

func mergeLists(old, new []any, at pipeline.Position) []any {
	merged := make([]any, 0, len(old)+len(new))
	if at == pipeline.PositionHead {
		for _, v := range new {
			merged = append(merged, deepCopyValue(v))
		}
		merged = append(merged, deepCopySlice(old)...)
		return merged
	}
	merged = append(merged, deepCopySlice(old)...)
	for _, v := range new {
		merged = append(merged, deepCopyValue(v))
	}
	return merged
}

func mergePageInfo(old, new map[string]any, at pipeline.Position) map[string]any {
	out := deepCopyMap(old)
	var moving, fixed []string
	if at == pipeline.PositionHead {
		moving = []string{"startCursor", "hasPreviousPage"}
		fixed = []string{"endCursor", "hasNextPage"}
	} else {
		moving = []string{"endCursor", "hasNextPage"}
		fixed = []string{"startCursor", "hasPreviousPage"}
	}
	for _, f := range moving {
		if v, ok := new[f]; ok {
			out[f] = v
		}
	}
	for _, f := range fixed {
		if _, ok := out[f]; !ok {
			if v, present := new[f]; present {
				out[f] = v
			}
		}
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopySlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return deepCopyMap(tv)
	case []any:
		return deepCopySlice(tv)
	default:
		return v
	}
}
