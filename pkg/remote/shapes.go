package remote

import (
	"encoding/json"
	"strings"
)

// The remote service does not commit to one search response shape. Four are
// known in the wild, and new ones have appeared across server versions, so
// decoding is explicit shape sniffing over a tagged union: an unrecognized
// body yields an empty result set, never an error. Only transport and auth
// failures are errors.

// ResponseShape identifies which known shape a search response arrived in
type ResponseShape string

const (
	// ShapeBareList is a top-level array of result objects
	ShapeBareList ResponseShape = "bare_list"
	// ShapeResultsObject is an object wrapping the array under "results"
	ShapeResultsObject ResponseShape = "results_object"
	// ShapeDataObject is an object wrapping the array under "data"
	ShapeDataObject ResponseShape = "data_object"
	// ShapeNestedList is an array of objects each wrapping an inner
	// "search_result" list of strings
	ShapeNestedList ResponseShape = "nested_list"
	// ShapeEmpty is an empty body or empty array
	ShapeEmpty ResponseShape = "empty"
	// ShapeUnrecognized is anything else
	ShapeUnrecognized ResponseShape = "unrecognized"
)

// SearchItem is one normalized search result
type SearchItem struct {
	ID      string  `json:"id,omitempty"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// rawSearchItem covers the field spellings observed across response shapes
type rawSearchItem struct {
	ID           string          `json:"id"`
	Content      string          `json:"content"`
	Text         string          `json:"text"`
	Name         string          `json:"name"`
	Score        float64         `json:"score"`
	SearchResult json.RawMessage `json:"search_result"`
}

// DecodeSearchResponse sniffs the shape of a search response body and
// extracts a normalized result list. It never returns an error: callers
// treat an unrecognized shape as zero results.
func DecodeSearchResponse(body []byte) (ResponseShape, []SearchItem) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return ShapeEmpty, nil
	}

	switch trimmed[0] {
	case '[':
		var raw []rawSearchItem
		if err := json.Unmarshal(body, &raw); err != nil {
			return ShapeUnrecognized, nil
		}
		if len(raw) == 0 {
			return ShapeEmpty, nil
		}
		if raw[0].SearchResult != nil {
			return ShapeNestedList, flattenNested(raw)
		}
		return ShapeBareList, normalize(raw)

	case '{':
		var wrapper struct {
			Results []rawSearchItem `json:"results"`
			Data    []rawSearchItem `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return ShapeUnrecognized, nil
		}
		if wrapper.Results != nil {
			return ShapeResultsObject, normalize(wrapper.Results)
		}
		if wrapper.Data != nil {
			return ShapeDataObject, normalize(wrapper.Data)
		}
		return ShapeUnrecognized, nil
	}

	return ShapeUnrecognized, nil
}

func normalize(raw []rawSearchItem) []SearchItem {
	items := make([]SearchItem, 0, len(raw))
	for _, r := range raw {
		content := r.Content
		if content == "" {
			content = r.Text
		}
		if content == "" {
			content = r.Name
		}
		items = append(items, SearchItem{
			ID:      r.ID,
			Content: content,
			Score:   r.Score,
		})
	}
	return items
}

// flattenNested handles the shape where each element wraps an inner list of
// result strings under "search_result".
func flattenNested(raw []rawSearchItem) []SearchItem {
	var items []SearchItem
	for _, r := range raw {
		var inner []string
		if err := json.Unmarshal(r.SearchResult, &inner); err != nil {
			continue
		}
		for _, s := range inner {
			items = append(items, SearchItem{Content: s})
		}
	}
	return items
}
