package msgext

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	"composebot/pkg/activity"
	"composebot/pkg/turn"

	"github.com/stretchr/testify/require"
)

func invokeTurn(name string, value string) *turn.Context {
	tc, _ := turn.NewBuffered(activity.Activity{
		Type:  activity.TypeInvoke,
		Name:  name,
		Value: json.RawMessage(value),
	})
	return tc
}

func selects(t *testing.T, sel turn.Selector, tc *turn.Context) bool {
	t.Helper()
	ok, err := sel(context.Background(), tc)
	require.NoError(t, err)
	return ok
}

func TestSelectorExactCommandID(t *testing.T) {
	t.Parallel()

	sel := Selector(ID("search"), activity.InvokeQuery, PreviewNone)

	tests := []struct {
		name string
		tc   *turn.Context
		want bool
	}{
		{name: "matching command", tc: invokeTurn(activity.InvokeQuery, `{"commandId":"search"}`), want: true},
		{name: "other command", tc: invokeTurn(activity.InvokeQuery, `{"commandId":"searchAll"}`), want: false},
		{name: "non-string command", tc: invokeTurn(activity.InvokeQuery, `{"commandId":42}`), want: false},
		{name: "missing command", tc: invokeTurn(activity.InvokeQuery, `{}`), want: false},
		{name: "missing value", tc: invokeTurn(activity.InvokeQuery, ``), want: false},
		{name: "other invoke", tc: invokeTurn(activity.InvokeQueryLink, `{"commandId":"search"}`), want: false},
		{name: "not an invoke", tc: turn.New(activity.Activity{Type: activity.TypeMessage, Name: activity.InvokeQuery, Value: json.RawMessage(`{"commandId":"search"}`)}, nil), want: false},
		{name: "nil turn", tc: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, selects(t, sel, tt.tc))
		})
	}
}

func TestSelectorPatternCommandID(t *testing.T) {
	t.Parallel()

	sel := Selector(Pattern(regexp.MustCompile(`^search(All)?$`)), activity.InvokeQuery, PreviewNone)

	require.True(t, selects(t, sel, invokeTurn(activity.InvokeQuery, `{"commandId":"search"}`)))
	require.True(t, selects(t, sel, invokeTurn(activity.InvokeQuery, `{"commandId":"searchAll"}`)))
	require.False(t, selects(t, sel, invokeTurn(activity.InvokeQuery, `{"commandId":"searchNone"}`)))
	require.False(t, selects(t, sel, invokeTurn(activity.InvokeQuery, `{"commandId":["search"]}`)))
	require.False(t, selects(t, sel, invokeTurn(activity.InvokeFetchTask, `{"commandId":"search"}`)))
}

func TestSelectorPreviewActionAsymmetry(t *testing.T) {
	t.Parallel()

	plain := Selector(ID("share"), activity.InvokeSubmitAction, PreviewNone)
	edit := Selector(ID("share"), activity.InvokeSubmitAction, PreviewEdit)
	send := Selector(Pattern(regexp.MustCompile(`share`)), activity.InvokeSubmitAction, PreviewSend)

	noPreview := invokeTurn(activity.InvokeSubmitAction, `{"commandId":"share"}`)
	editPreview := invokeTurn(activity.InvokeSubmitAction, `{"commandId":"share","botMessagePreviewAction":"edit"}`)
	sendPreview := invokeTurn(activity.InvokeSubmitAction, `{"commandId":"share","botMessagePreviewAction":"send"}`)
	emptyPreview := invokeTurn(activity.InvokeSubmitAction, `{"commandId":"share","botMessagePreviewAction":""}`)
	nonStringPreview := invokeTurn(activity.InvokeSubmitAction, `{"commandId":"share","botMessagePreviewAction":true}`)

	require.True(t, selects(t, plain, noPreview))
	require.False(t, selects(t, plain, editPreview))
	require.False(t, selects(t, plain, sendPreview))
	require.False(t, selects(t, plain, emptyPreview))
	require.True(t, selects(t, plain, nonStringPreview))

	require.True(t, selects(t, edit, editPreview))
	require.False(t, selects(t, edit, noPreview))
	require.False(t, selects(t, edit, sendPreview))

	require.True(t, selects(t, send, sendPreview))
	require.False(t, selects(t, send, editPreview))
	require.False(t, selects(t, send, noPreview))
}

func TestSelectorMatchFuncIsReturnedUnchanged(t *testing.T) {
	t.Parallel()

	calls := 0
	custom := func(context.Context, *turn.Context) (bool, error) {
		calls++
		return true, nil
	}

	sel := Selector(MatchFunc(custom), activity.InvokeQuery, PreviewEdit)

	// Custom selectors own every check, including the activity type.
	require.True(t, selects(t, sel, turn.New(activity.Activity{Type: activity.TypeMessage}, nil)))
	require.Equal(t, 1, calls)
}

func TestSelectItemSelector(t *testing.T) {
	t.Parallel()

	require.True(t, selects(t, selectItemSelector, invokeTurn(activity.InvokeSelectItem, `{}`)))
	require.True(t, selects(t, selectItemSelector, invokeTurn(activity.InvokeSelectItem, ``)))
	require.False(t, selects(t, selectItemSelector, invokeTurn(activity.InvokeQuery, `{}`)))
}

func TestAnyOfExpandsNestedGroups(t *testing.T) {
	t.Parallel()

	id := AnyOf(ID("a"), AnyOf(ID("b"), Pattern(regexp.MustCompile("c"))), ID("d"))
	members := id.expand()

	require.Len(t, members, 4)
	require.Equal(t, "a", members[0].exact)
	require.Equal(t, "b", members[1].exact)
	require.Equal(t, commandPattern, members[2].kind)
	require.Equal(t, "d", members[3].exact)
}
