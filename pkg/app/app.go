// Package app holds the ordered route table an inbound turn is matched against.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"composebot/pkg/activity"
	"composebot/pkg/msgext"
	"composebot/pkg/turn"
)

type route[S any] struct {
	selector turn.Selector
	handler  turn.RouteHandler[S]
}

// Application matches each turn against its routes and runs the first match.
// Routes must be registered before the first Run.
type Application[S any] struct {
	log          *slog.Logger
	invokeRoutes []route[S]
	routes       []route[S]
}

// Option configures an Application.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger sets the logger used by the application and its extensions.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New builds an empty Application.
func New[S any](opts ...Option) *Application[S] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	return &Application[S]{log: o.log}
}

// AddRoute appends a route. Invoke routes are tried before ordinary routes
// for invoke activities.
func (a *Application[S]) AddRoute(selector turn.Selector, handler turn.RouteHandler[S], isInvoke bool) *Application[S] {
	r := route[S]{selector: selector, handler: handler}
	if isInvoke {
		a.invokeRoutes = append(a.invokeRoutes, r)
	} else {
		a.routes = append(a.routes, r)
	}

	return a
}

// MessageExtensions returns the compose extension registration API.
func (a *Application[S]) MessageExtensions() *msgext.Extensions[S, *Application[S]] {
	return msgext.New[S](a, a.log)
}

// Run routes the turn. It reports whether a route matched, and returns the
// matched handler's error unchanged.
func (a *Application[S]) Run(ctx context.Context, tc *turn.Context, state S) (bool, error) {
	if tc == nil {
		return false, fmt.Errorf("run application: turn context is required")
	}

	if tc.Activity().Type == activity.TypeInvoke {
		matched, err := a.runFirst(ctx, tc, state, a.invokeRoutes)
		if matched || err != nil {
			return matched, err
		}
	}

	return a.runFirst(ctx, tc, state, a.routes)
}

func (a *Application[S]) runFirst(ctx context.Context, tc *turn.Context, state S, routes []route[S]) (bool, error) {
	for _, r := range routes {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		ok, err := r.selector(ctx, tc)
		if err != nil {
			return false, fmt.Errorf("evaluate route selector: %w", err)
		}
		if !ok {
			continue
		}

		return true, r.handler(ctx, tc, state)
	}

	return false, nil
}
