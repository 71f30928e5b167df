package pagination

// PageInfo is the cursor bookkeeping of a paginated document. Cursors are
// opaque; emptiness means "not yet known".
type PageInfo struct {
	StartCursor     string
	EndCursor       string
	HasNextPage     bool
	HasPreviousPage bool
}

// pageInfoAt extracts the pageInfo object reached by walking path then
// "pageInfo" inside data. The second return is false when the path does not
// resolve to a pageInfo object.
func pageInfoAt(data map[string]any, path []string) (PageInfo, bool) {
	cur := data
	for _, seg := range path {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return PageInfo{}, false
		}
		cur = next
	}
	raw, ok := cur["pageInfo"].(map[string]any)
	if !ok {
		return PageInfo{}, false
	}
	var pi PageInfo
	if v, ok := raw["startCursor"].(string); ok {
		pi.StartCursor = v
	}
	if v, ok := raw["endCursor"].(string); ok {
		pi.EndCursor = v
	}
	if v, ok := raw["hasNextPage"].(bool); ok {
		pi.HasNextPage = v
	}
	if v, ok := raw["hasPreviousPage"].(bool); ok {
		pi.HasPreviousPage = v
	}
	return pi, true
}
