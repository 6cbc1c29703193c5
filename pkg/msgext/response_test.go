package msgext

import (
	"encoding/json"
	"testing"

	"composebot/pkg/activity"

	"github.com/stretchr/testify/require"
)

func requireJSON(t *testing.T, want string, v any) {
	t.Helper()
	got, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, want, string(got))
}

func TestFetchTaskResponse(t *testing.T) {
	t.Parallel()

	requireJSON(t, `{"task":{"type":"message","value":"hello"}}`, fetchTaskResponse(Message("hello")))
	requireJSON(t, `{"task":{"type":"continue","value":{"title":"Create","url":"https://example.com/task"}}}`,
		fetchTaskResponse(&TaskInfo{Title: "Create", URL: "https://example.com/task"}))
	requireJSON(t, `{"task":{"type":"continue","value":{"height":"medium"}}}`,
		fetchTaskResponse(RawResult{"height": "medium"}))
	requireJSON(t, `{"task":{"type":"continue"}}`, fetchTaskResponse(nil))
	requireJSON(t, `{"task":{"type":"continue"}}`, fetchTaskResponse((*TaskInfo)(nil)))
	requireJSON(t, `{"task":{"type":"message","value":""}}`, fetchTaskResponse(Message("")))
}

func TestActionResponseDecisionTable(t *testing.T) {
	t.Parallel()

	card := &Attachment{ContentType: "application/vnd.microsoft.card.adaptive", Content: map[string]any{"type": "AdaptiveCard"}}

	tests := []struct {
		name   string
		result ActionResult
		want   string
	}{
		{
			name:   "message",
			result: Message("done"),
			want:   `{"task":{"type":"message","value":"done"}}`,
		},
		{
			name:   "task with card continues",
			result: &TaskInfo{Card: card},
			want:   `{"task":{"type":"continue","value":{"card":{"contentType":"application/vnd.microsoft.card.adaptive","content":{"type":"AdaptiveCard"}}}}}`,
		},
		{
			name:   "result list",
			result: &Result{Type: "result", AttachmentLayout: "list", Attachments: []Attachment{*card}},
			want:   `{"composeExtension":{"type":"result","attachmentLayout":"list","attachments":[{"contentType":"application/vnd.microsoft.card.adaptive","content":{"type":"AdaptiveCard"}}]}}`,
		},
		{
			name:   "no action",
			result: nil,
			want:   `{}`,
		},
		{
			name:   "nil result pointer",
			result: (*Result)(nil),
			want:   `{}`,
		},
		{
			name:   "raw with card continues",
			result: RawResult{"card": map[string]any{"contentType": "x"}},
			want:   `{"task":{"type":"continue","value":{"card":{"contentType":"x"}}}}`,
		},
		{
			name:   "raw without card is a result",
			result: RawResult{"attachments": []any{}},
			want:   `{"composeExtension":{"attachments":[]}}`,
		},
		{
			name:   "raw with falsy card is a result",
			result: RawResult{"card": "", "type": "message"},
			want:   `{"composeExtension":{"card":"","type":"message"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireJSON(t, tt.want, actionResponse(tt.result))
		})
	}
}

func TestParseQuery(t *testing.T) {
	t.Parallel()

	q := ParseQuery(activity.Activity{Value: json.RawMessage(`{
		"commandId": "search",
		"queryOptions": {"count": 10, "skip": 5},
		"parameters": [{"name": "a", "value": 1}, {"name": "", "value": 2}, {"value": 3}]
	}`)})
	require.Equal(t, Query{Count: 10, Skip: 5, Parameters: map[string]any{"a": float64(1)}}, q)

	q = ParseQuery(activity.Activity{Value: json.RawMessage(`{"commandId": "search"}`)})
	require.Equal(t, Query{Count: 25, Skip: 0, Parameters: map[string]any{}}, q)

	q = ParseQuery(activity.Activity{})
	require.Equal(t, Query{Count: 25, Skip: 0, Parameters: map[string]any{}}, q)

	q = ParseQuery(activity.Activity{Value: json.RawMessage(`{
		"parameters": [7, "loose", {"name": "kept", "value": "yes"}, {"name": 5}, null, {"name": "also", "value": true}]
	}`)})
	require.Equal(t, map[string]any{"kept": "yes", "also": true}, q.Parameters)

	q = ParseQuery(activity.Activity{Value: json.RawMessage(`{"queryOptions": {"count": 0}}`)})
	require.Equal(t, 0, q.Count)
	require.Equal(t, 0, q.Skip)
}

func TestQueryDecode(t *testing.T) {
	t.Parallel()

	q := Query{Parameters: map[string]any{"searchQuery": "golang", "limit": float64(3)}}

	var params struct {
		SearchQuery string `json:"searchQuery"`
		Limit       int    `json:"limit"`
	}
	require.NoError(t, q.Decode(&params))
	require.Equal(t, "golang", params.SearchQuery)
	require.Equal(t, 3, params.Limit)
}

func TestInputExtraction(t *testing.T) {
	t.Parallel()

	a := activity.Activity{Value: json.RawMessage(`{"data":{"title":"x"},"botActivityPreview":[{"type":"message","text":"draft"}]}`)}
	require.JSONEq(t, `{"title":"x"}`, string(submitData(a)))
	require.Equal(t, "draft", previewActivity(a).Text)

	empty := activity.Activity{Value: json.RawMessage(`{"botActivityPreview":[]}`)}
	require.JSONEq(t, `{}`, string(submitData(empty)))
	require.Equal(t, activity.Activity{}, previewActivity(empty))
	require.Equal(t, activity.Activity{}, previewActivity(activity.Activity{}))

	require.Equal(t, map[string]any{}, selectedItem(activity.Activity{}))
	require.Equal(t, map[string]any{}, selectedItem(activity.Activity{Value: json.RawMessage(`[1,2]`)}))
	require.Equal(t, map[string]any{"id": "42"}, selectedItem(activity.Activity{Value: json.RawMessage(`{"id":"42"}`)}))
}
