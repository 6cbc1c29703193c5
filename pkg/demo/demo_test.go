package demo

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"composebot/pkg/activity"
	"composebot/pkg/turn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, in activity.Activity) (*turn.Buffer, bool) {
	t.Helper()

	application := NewApplication(DefaultCatalog(), nil)
	tc, buf := turn.NewBuffered(in)
	matched, err := application.Run(context.Background(), tc, NewState(tc))
	require.NoError(t, err)
	return buf, matched
}

func invokeBody(t *testing.T, buf *turn.Buffer) string {
	t.Helper()

	resp, ok := buf.InvokeResponse()
	require.True(t, ok, "expected an invoke response")
	require.Equal(t, http.StatusOK, resp.Status)
	return string(resp.Body.(json.RawMessage))
}

func invoke(name, value string) activity.Activity {
	return activity.Activity{
		Type:      activity.TypeInvoke,
		Name:      name,
		ChannelID: "test",
		From:      &activity.Account{ID: "user-1"},
		Value:     json.RawMessage(value),
	}
}

func TestSearchReturnsListResults(t *testing.T) {
	t.Parallel()

	buf, matched := run(t, invoke(activity.InvokeQuery,
		`{"commandId":"searchPackages","parameters":[{"name":"query","value":"nats"}],"queryOptions":{"skip":0,"count":1}}`))
	require.True(t, matched)

	var body struct {
		ComposeExtension struct {
			Type             string `json:"type"`
			AttachmentLayout string `json:"attachmentLayout"`
			Attachments      []struct {
				Content struct {
					Title string `json:"title"`
				} `json:"content"`
			} `json:"attachments"`
		} `json:"composeExtension"`
	}
	require.NoError(t, json.Unmarshal([]byte(invokeBody(t, buf)), &body))
	assert.Equal(t, "result", body.ComposeExtension.Type)
	assert.Equal(t, "list", body.ComposeExtension.AttachmentLayout)
	require.Len(t, body.ComposeExtension.Attachments, 1)
	assert.Equal(t, "nats-server", body.ComposeExtension.Attachments[0].Content.Title)
}

func TestSearchWithoutMatchesReturnsMessage(t *testing.T) {
	t.Parallel()

	buf, _ := run(t, invoke(activity.InvokeQuery,
		`{"commandId":"searchPackages","parameters":[{"name":"query","value":"zzz"}]}`))
	require.JSONEq(t, `{"composeExtension":{"type":"message","text":"No packages match \"zzz\""}}`, invokeBody(t, buf))
}

func TestSelectItemLooksUpPackage(t *testing.T) {
	t.Parallel()

	buf, _ := run(t, invoke(activity.InvokeSelectItem, `{"path":"github.com/spf13/cobra"}`))
	assert.Contains(t, invokeBody(t, buf), `"title":"cobra"`)

	buf, _ = run(t, invoke(activity.InvokeSelectItem, `{"path":"example.com/gone"}`))
	assert.JSONEq(t, `{"composeExtension":{"type":"message","text":"That package is no longer listed"}}`, invokeBody(t, buf))
}

func TestQueryLinkUnfurlsDocsLinks(t *testing.T) {
	t.Parallel()

	buf, matched := run(t, invoke(activity.InvokeQueryLink, `{"url":"https://pkg.go.dev/github.com/mymmrac/telego"}`))
	require.True(t, matched)
	assert.Contains(t, invokeBody(t, buf), `"title":"telego"`)

	buf, matched = run(t, invoke(activity.InvokeAnonymousQueryLink, `{"url":"https://pkg.go.dev/example.com/unknown"}`))
	require.True(t, matched)
	assert.JSONEq(t, `{}`, invokeBody(t, buf))

	buf, matched = run(t, invoke(activity.InvokeQueryLink, `{"url":"https://example.com/"}`))
	require.False(t, matched)
	_, ok := buf.InvokeResponse()
	assert.False(t, ok)
}

func TestFetchTaskOpensComposerForAliases(t *testing.T) {
	t.Parallel()

	for _, commandID := range []string{"createCard", "card:new"} {
		buf, matched := run(t, invoke(activity.InvokeFetchTask, `{"commandId":"`+commandID+`"}`))
		require.True(t, matched, commandID)

		var body struct {
			Task struct {
				Type  string `json:"type"`
				Value struct {
					Title string `json:"title"`
				} `json:"value"`
			} `json:"task"`
		}
		require.NoError(t, json.Unmarshal([]byte(invokeBody(t, buf)), &body))
		assert.Equal(t, "continue", body.Task.Type)
		assert.Equal(t, "Create card", body.Task.Value.Title)
	}
}

func TestSubmitActionPreviewsCard(t *testing.T) {
	t.Parallel()

	buf, _ := run(t, invoke(activity.InvokeSubmitAction,
		`{"commandId":"createCard","data":{"title":"Release","text":"v1.0 is out"}}`))

	var body struct {
		ComposeExtension struct {
			Type            string            `json:"type"`
			ActivityPreview activity.Activity `json:"activityPreview"`
		} `json:"composeExtension"`
	}
	require.NoError(t, json.Unmarshal([]byte(invokeBody(t, buf)), &body))
	assert.Equal(t, "botMessagePreview", body.ComposeExtension.Type)
	require.Len(t, body.ComposeExtension.ActivityPreview.Attachments, 1)
	assert.Equal(t, cardDraft{Title: "Release", Text: "v1.0 is out"}, draftFromActivity(body.ComposeExtension.ActivityPreview))
}

func TestSubmitActionWithoutTitleReopensForm(t *testing.T) {
	t.Parallel()

	buf, _ := run(t, invoke(activity.InvokeSubmitAction, `{"commandId":"createCard","data":{"text":"draft"}}`))
	body := invokeBody(t, buf)
	assert.Contains(t, body, `"type":"continue"`)
	assert.Contains(t, body, `"value":"draft"`)
}

func TestPreviewEditAndSend(t *testing.T) {
	t.Parallel()

	preview, err := draftActivity(cardDraft{Title: "Release", Subtitle: "notes"})
	require.NoError(t, err)
	rawPreview, err := json.Marshal([]activity.Activity{preview})
	require.NoError(t, err)

	buf, matched := run(t, invoke(activity.InvokeSubmitAction,
		`{"commandId":"createCard","botMessagePreviewAction":"edit","botActivityPreview":`+string(rawPreview)+`}`))
	require.True(t, matched)
	body := invokeBody(t, buf)
	assert.Contains(t, body, `"type":"continue"`)
	assert.Contains(t, body, `"value":"Release"`)

	buf, matched = run(t, invoke(activity.InvokeSubmitAction,
		`{"commandId":"createCard","botMessagePreviewAction":"send","botActivityPreview":`+string(rawPreview)+`}`))
	require.True(t, matched)
	assert.JSONEq(t, `{}`, invokeBody(t, buf))

	sent := buf.Activities()
	require.Len(t, sent, 2)
	assert.Equal(t, activity.TypeMessage, sent[0].Type)
	assert.Equal(t, cardDraft{Title: "Release", Subtitle: "notes"}, draftFromActivity(sent[0]))
}

func TestMessagesGetHelp(t *testing.T) {
	t.Parallel()

	buf, matched := run(t, activity.Activity{Type: activity.TypeMessage, Text: "hi"})
	require.True(t, matched)

	sent := buf.Activities()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, CommandSearch)
}

func TestCatalogSearchPaging(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog([]Package{{Name: "c"}, {Name: "a"}, {Name: "b"}})
	assert.Equal(t, []Package{{Name: "a"}, {Name: "b"}}, catalog.Search("", 0, 2))
	assert.Equal(t, []Package{{Name: "c"}}, catalog.Search("", 2, 2))
	assert.Nil(t, catalog.Search("", 5, 2))
	assert.Len(t, catalog.Search("", -1, 0), 3)
}
