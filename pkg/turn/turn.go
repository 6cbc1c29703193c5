package turn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"composebot/pkg/activity"
)

// InvokeResponseKey is the scratch-store key set once an invoke response
// has been queued for the turn.
const InvokeResponseKey = "invokeResponse"

// Sender delivers outbound activities for one turn.
type Sender interface {
	Send(ctx context.Context, a activity.Activity) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, a activity.Activity) error

func (f SenderFunc) Send(ctx context.Context, a activity.Activity) error {
	return f(ctx, a)
}

// Selector decides whether a route should handle the turn's activity.
type Selector func(ctx context.Context, tc *Context) (bool, error)

// RouteHandler runs a matched route with the caller's conversation state.
type RouteHandler[S any] func(ctx context.Context, tc *Context, state S) error

// Context is the per-activity turn: the inbound activity, a scratch store
// scoped to this turn, and the capability to send replies.
type Context struct {
	activity activity.Activity
	sender   Sender

	mu    sync.Mutex
	state map[string]any
}

// New builds a turn for one inbound activity.
func New(a activity.Activity, sender Sender) *Context {
	return &Context{
		activity: a,
		sender:   sender,
		state:    make(map[string]any),
	}
}

// Activity returns the inbound activity.
func (c *Context) Activity() activity.Activity {
	return c.activity
}

// Get reads a value from the turn scratch store.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.state[key]
	return value, ok
}

// Set writes a value to the turn scratch store.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// Responded reports whether an invoke response was already queued.
func (c *Context) Responded() bool {
	value, ok := c.Get(InvokeResponseKey)
	if !ok {
		return false
	}

	set, _ := value.(bool)
	return set
}

// SendActivity forwards a to the turn sender. Sending an invokeResponse
// marks the turn as responded.
func (c *Context) SendActivity(ctx context.Context, a activity.Activity) error {
	if c.sender == nil {
		return errors.New("turn has no sender")
	}

	if err := c.sender.Send(ctx, a); err != nil {
		return err
	}

	if a.Type == activity.TypeInvokeResponse {
		c.Set(InvokeResponseKey, true)
	}

	return nil
}

// SendInvokeResponse queues an invokeResponse activity carrying body and status.
func (c *Context) SendInvokeResponse(ctx context.Context, status int, body any) error {
	reply, err := activity.NewInvokeResponse(activity.InvokeResponse{Status: status, Body: body})
	if err != nil {
		return fmt.Errorf("encode invoke response: %w", err)
	}

	return c.SendActivity(ctx, reply)
}
