// Package msgext routes compose extension invoke activities to application
// handlers and shapes their results into invoke responses.
package msgext

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"composebot/pkg/activity"
	"composebot/pkg/turn"
)

// RouteTable is the application route table that dispatch routes are added to.
// AddRoute returns the owning application so registrations can be chained.
type RouteTable[S any, A any] interface {
	AddRoute(selector turn.Selector, handler turn.RouteHandler[S], isInvoke bool) A
}

// QueryLinkHandler handles queryLink and anonymousQueryLink invokes.
type QueryLinkHandler[S any] func(ctx context.Context, tc *turn.Context, state S) (*Result, error)

// FetchTaskHandler returns the task module to show, or a message.
type FetchTaskHandler[S any] func(ctx context.Context, tc *turn.Context, state S) (TaskResult, error)

// QueryHandler receives the flattened query.
type QueryHandler[S any] func(ctx context.Context, tc *turn.Context, state S, query Query) (*Result, error)

// SelectItemHandler receives the selected result item.
type SelectItemHandler[S any] func(ctx context.Context, tc *turn.Context, state S, item map[string]any) (*Result, error)

// SubmitActionHandler receives the submitted task module data.
type SubmitActionHandler[S any] func(ctx context.Context, tc *turn.Context, state S, data json.RawMessage) (ActionResult, error)

// PreviewEditHandler receives the previewed bot activity being edited.
type PreviewEditHandler[S any] func(ctx context.Context, tc *turn.Context, state S, preview activity.Activity) (ActionResult, error)

// PreviewSendHandler receives the previewed bot activity being sent.
type PreviewSendHandler[S any] func(ctx context.Context, tc *turn.Context, state S, preview activity.Activity) error

// Extensions registers compose extension routes on an application.
type Extensions[S any, A RouteTable[S, A]] struct {
	app A
	log *slog.Logger
}

// New binds message extension registration to app.
func New[S any, A RouteTable[S, A]](app A, log *slog.Logger) *Extensions[S, A] {
	if log == nil {
		log = slog.Default()
	}

	return &Extensions[S, A]{
		app: app,
		log: log.With("component", "msgext"),
	}
}

// AnonymousQueryLink handles link unfurling for users who have not installed the app.
func (e *Extensions[S, A]) AnonymousQueryLink(id CommandID, handler QueryLinkHandler[S]) A {
	const op = "anonymousQueryLink"
	return e.register(id, activity.InvokeAnonymousQueryLink, PreviewNone, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeAnonymousQueryLink, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state)
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return composeResponse(result) })
	})
}

// FetchTask handles requests for the initial task module of an action command.
func (e *Extensions[S, A]) FetchTask(id CommandID, handler FetchTaskHandler[S]) A {
	const op = "fetchTask"
	return e.register(id, activity.InvokeFetchTask, PreviewNone, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeFetchTask, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state)
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return fetchTaskResponse(result) })
	})
}

// Query handles search commands.
func (e *Extensions[S, A]) Query(id CommandID, handler QueryHandler[S]) A {
	const op = "query"
	return e.register(id, activity.InvokeQuery, PreviewNone, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeQuery, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state, ParseQuery(tc.Activity()))
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return composeResponse(result) })
	})
}

// QueryLink handles link unfurling.
func (e *Extensions[S, A]) QueryLink(id CommandID, handler QueryLinkHandler[S]) A {
	const op = "queryLink"
	return e.register(id, activity.InvokeQueryLink, PreviewNone, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeQueryLink, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state)
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return composeResponse(result) })
	})
}

// SelectItem handles the user picking an item from a query result list.
// There is a single selectItem route per application.
func (e *Extensions[S, A]) SelectItem(handler SelectItemHandler[S]) A {
	const op = "selectItem"
	return e.app.AddRoute(selectItemSelector, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeSelectItem, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state, selectedItem(tc.Activity()))
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return composeResponse(result) })
	}, true)
}

// SubmitAction handles task module submissions of action commands.
func (e *Extensions[S, A]) SubmitAction(id CommandID, handler SubmitActionHandler[S]) A {
	const op = "submitAction"
	return e.register(id, activity.InvokeSubmitAction, PreviewNone, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeSubmitAction, PreviewNone); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state, submitData(tc.Activity()))
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return actionResponse(result) })
	})
}

// BotMessagePreviewEdit handles the user choosing to edit a previewed bot message.
func (e *Extensions[S, A]) BotMessagePreviewEdit(id CommandID, handler PreviewEditHandler[S]) A {
	const op = "botMessagePreviewEdit"
	return e.register(id, activity.InvokeSubmitAction, PreviewEdit, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeSubmitAction, PreviewEdit); err != nil {
			return err
		}

		result, err := handler(ctx, tc, state, previewActivity(tc.Activity()))
		if err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return actionResponse(result) })
	})
}

// BotMessagePreviewSend handles the user confirming a previewed bot message.
// The invoke is answered with an empty body.
func (e *Extensions[S, A]) BotMessagePreviewSend(id CommandID, handler PreviewSendHandler[S]) A {
	const op = "botMessagePreviewSend"
	return e.register(id, activity.InvokeSubmitAction, PreviewSend, func(ctx context.Context, tc *turn.Context, state S) error {
		if err := e.verify(tc, op, activity.InvokeSubmitAction, PreviewSend); err != nil {
			return err
		}

		if err := handler(ctx, tc, state, previewActivity(tc.Activity())); err != nil {
			return err
		}

		return e.respond(ctx, tc, op, func() any { return struct{}{} })
	})
}

func (e *Extensions[S, A]) register(id CommandID, invokeName string, preview PreviewAction, body turn.RouteHandler[S]) A {
	for _, cid := range id.expand() {
		e.app.AddRoute(Selector(cid, invokeName, preview), body, true)
	}

	return e.app
}

// verify re-checks what the selector should already have guaranteed.
func (e *Extensions[S, A]) verify(tc *turn.Context, op string, invokeName string, preview PreviewAction) error {
	var a activity.Activity
	if tc != nil {
		a = tc.Activity()
	}

	action, _ := a.StringField(previewActionField)
	if tc != nil && a.IsInvoke(invokeName) && (preview == PreviewNone || PreviewAction(action) == preview) {
		return nil
	}

	err := &MismatchError{Operation: op, Type: a.Type, Name: a.Name, PreviewAction: action}
	e.log.Error("Message extension route invariant violated", "operation", op, "activity_type", a.Type, "activity_name", a.Name, "error", err)
	return err
}

// respond queues the shaped body unless the turn already has an invoke response.
func (e *Extensions[S, A]) respond(ctx context.Context, tc *turn.Context, op string, shape func() any) error {
	if tc.Responded() {
		e.log.Debug("Invoke response already queued", "operation", op)
		return nil
	}

	return tc.SendInvokeResponse(ctx, http.StatusOK, shape())
}
