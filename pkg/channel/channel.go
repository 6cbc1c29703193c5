package channel

import (
	"context"

	"composebot/pkg/activity"
)

// Reply is everything one turn produced for the transport to deliver.
type Reply struct {
	// InvokeResponse is set for invoke activities, even when the turn failed.
	InvokeResponse *activity.InvokeResponse
	// Activities holds the other activities sent during the turn, in order.
	Activities []activity.Activity
}

// Handler processes one inbound activity and returns the turn's reply.
type Handler func(context.Context, activity.Activity) (Reply, error)

// Adapter bridges one external transport (for example NATS or Telegram) into the gateway.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
