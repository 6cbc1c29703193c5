package msgext

import (
	"encoding/json"

	"composebot/pkg/activity"
)

const (
	defaultQueryCount = 25
	defaultQuerySkip  = 0
)

// Query is a search request with its parameter list flattened by name.
type Query struct {
	Count      int            `json:"count"`
	Skip       int            `json:"skip"`
	Parameters map[string]any `json:"parameters"`
}

// Decode unmarshals the flattened parameters into dst.
func (q Query) Decode(dst any) error {
	raw, err := json.Marshal(q.Parameters)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, dst)
}

type queryOptions struct {
	Count *float64 `json:"count"`
	Skip  *float64 `json:"skip"`
}

type queryParameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ParseQuery flattens value.queryOptions and value.parameters. Missing or
// malformed options fall back to count 25 and skip 0; parameters without a
// name, or that are not objects, are dropped one by one.
func ParseQuery(a activity.Activity) Query {
	query := Query{
		Count:      defaultQueryCount,
		Skip:       defaultQuerySkip,
		Parameters: make(map[string]any),
	}

	if raw, ok := a.Field("queryOptions"); ok {
		var opts queryOptions
		if err := json.Unmarshal(raw, &opts); err == nil {
			if opts.Count != nil {
				query.Count = int(*opts.Count)
			}
			if opts.Skip != nil {
				query.Skip = int(*opts.Skip)
			}
		}
	}

	if raw, ok := a.Field("parameters"); ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err == nil {
			for _, entry := range entries {
				var param queryParameter
				if err := json.Unmarshal(entry, &param); err != nil || param.Name == "" {
					continue
				}
				query.Parameters[param.Name] = param.Value
			}
		}
	}

	return query
}

// selectedItem returns the whole invoke value as the selected item.
func selectedItem(a activity.Activity) map[string]any {
	item := make(map[string]any)
	if err := a.DecodeValue(&item); err != nil || item == nil {
		return make(map[string]any)
	}

	return item
}

// submitData returns value.data, or an empty object.
func submitData(a activity.Activity) json.RawMessage {
	if raw, ok := a.Field("data"); ok {
		return raw
	}

	return json.RawMessage("{}")
}

// previewActivity returns value.botActivityPreview[0], or an empty activity.
func previewActivity(a activity.Activity) activity.Activity {
	raw, ok := a.Field("botActivityPreview")
	if !ok {
		return activity.Activity{}
	}

	var previews []activity.Activity
	if err := json.Unmarshal(raw, &previews); err != nil || len(previews) == 0 {
		return activity.Activity{}
	}

	return previews[0]
}
