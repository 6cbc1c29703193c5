package gateway

import (
	"context"

	"composebot/pkg/app"
	"composebot/pkg/turn"
)

// Router runs one turn and reports whether any route matched it.
type Router interface {
	Route(ctx context.Context, tc *turn.Context) (bool, error)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, tc *turn.Context) (bool, error)

func (f RouterFunc) Route(ctx context.Context, tc *turn.Context) (bool, error) {
	return f(ctx, tc)
}

// Routes binds an application to the gateway. newState builds the state
// value handed to route handlers for each turn.
func Routes[S any](application *app.Application[S], newState func(*turn.Context) S) RouterFunc {
	return func(ctx context.Context, tc *turn.Context) (bool, error) {
		var state S
		if newState != nil {
			state = newState(tc)
		}
		return application.Run(ctx, tc, state)
	}
}
