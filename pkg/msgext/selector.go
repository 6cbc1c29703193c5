package msgext

import (
	"context"
	"regexp"

	"composebot/pkg/activity"
	"composebot/pkg/turn"
)

// PreviewAction distinguishes the bot message preview phases of submitAction.
type PreviewAction string

const (
	PreviewNone PreviewAction = ""
	PreviewEdit PreviewAction = "edit"
	PreviewSend PreviewAction = "send"
)

const previewActionField = "botMessagePreviewAction"

type commandKind int

const (
	commandExact commandKind = iota
	commandPattern
	commandFunc
	commandGroup
)

// CommandID identifies which command(s) a registration handles: an exact
// command id, a pattern, a custom selector, or a group of those.
type CommandID struct {
	kind    commandKind
	exact   string
	pattern *regexp.Regexp
	match   turn.Selector
	group   []CommandID
}

// ID matches value.commandId by equality.
func ID(commandID string) CommandID {
	return CommandID{kind: commandExact, exact: commandID}
}

// Pattern matches value.commandId with re.
func Pattern(re *regexp.Regexp) CommandID {
	return CommandID{kind: commandPattern, pattern: re}
}

// MatchFunc hands all matching to fn, including the activity type and name checks.
func MatchFunc(fn turn.Selector) CommandID {
	return CommandID{kind: commandFunc, match: fn}
}

// AnyOf registers one independent route per member.
func AnyOf(ids ...CommandID) CommandID {
	return CommandID{kind: commandGroup, group: ids}
}

// expand flattens groups into the individual identifiers, in order.
func (c CommandID) expand() []CommandID {
	if c.kind != commandGroup {
		return []CommandID{c}
	}

	out := make([]CommandID, 0, len(c.group))
	for _, member := range c.group {
		out = append(out, member.expand()...)
	}

	return out
}

// Selector builds the route predicate for one command identifier, invoke
// name and expected preview action.
func Selector(id CommandID, invokeName string, preview PreviewAction) turn.Selector {
	switch id.kind {
	case commandFunc:
		return id.match
	case commandPattern:
		re := id.pattern
		return func(_ context.Context, tc *turn.Context) (bool, error) {
			commandID, ok := invokeCommandID(tc, invokeName)
			if !ok || re == nil || !matchesPreviewAction(tc.Activity(), preview) {
				return false, nil
			}
			return re.MatchString(commandID), nil
		}
	default:
		want := id.exact
		return func(_ context.Context, tc *turn.Context) (bool, error) {
			commandID, ok := invokeCommandID(tc, invokeName)
			if !ok {
				return false, nil
			}
			return commandID == want && matchesPreviewAction(tc.Activity(), preview), nil
		}
	}
}

// selectItemSelector matches every selectItem invoke; there is one such route per application.
func selectItemSelector(_ context.Context, tc *turn.Context) (bool, error) {
	return tc != nil && tc.Activity().IsInvoke(activity.InvokeSelectItem), nil
}

func invokeCommandID(tc *turn.Context, invokeName string) (string, bool) {
	if tc == nil {
		return "", false
	}

	a := tc.Activity()
	if !a.IsInvoke(invokeName) {
		return "", false
	}

	return a.StringField("commandId")
}

// matchesPreviewAction: a string botMessagePreviewAction must equal preview;
// without one, only registrations expecting no preview action match.
func matchesPreviewAction(a activity.Activity, preview PreviewAction) bool {
	if action, ok := a.StringField(previewActionField); ok {
		return preview != PreviewNone && PreviewAction(action) == preview
	}

	return preview == PreviewNone
}
