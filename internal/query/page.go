package query

import "encoding/json"

// Meta echoes the applied query features. Count is the number of matching
// rows before pagination.
type Meta struct {
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	Skip       int                    `json:"skip"`
	Filters    map[string]interface{} `json:"filters"`
	SortedBy   string                 `json:"sorted_by,omitempty"`
	SelectedBy string                 `json:"selected_by,omitempty"`
	SearchedBy string                 `json:"searched_by,omitempty"`
	Count      int64                  `json:"count"`
}

// Page is one page of records plus its meta.
type Page[T any] struct {
	Data []T
	Meta Meta

	fields []string
}

// MarshalJSON renders {"data": [...], "meta": {...}}, trimming each record to
// the requested fields (plus id) when ?fields was given.
func (p Page[T]) MarshalJSON() ([]byte, error) {
	if len(p.fields) == 0 {
		return json.Marshal(struct {
			Data []T  `json:"data"`
			Meta Meta `json:"meta"`
		}{p.Data, p.Meta})
	}

	keep := map[string]bool{"id": true}
	for _, f := range p.fields {
		keep[f] = true
	}

	data := make([]map[string]json.RawMessage, 0, len(p.Data))
	for _, row := range p.Data {
		raw, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		var full map[string]json.RawMessage
		if err := json.Unmarshal(raw, &full); err != nil {
			return nil, err
		}
		trimmed := make(map[string]json.RawMessage, len(keep))
		for k, v := range full {
			if keep[k] {
				trimmed[k] = v
			}
		}
		data = append(data, trimmed)
	}

	return json.Marshal(struct {
		Data []map[string]json.RawMessage `json:"data"`
		Meta Meta                         `json:"meta"`
	}{data, p.Meta})
}
