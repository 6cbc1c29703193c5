package turn

import (
	"context"
	"sync"

	"composebot/pkg/activity"
)

// Buffer is an in-memory Sender for request/reply transports, where
// replies are collected during the turn and returned once it ends.
type Buffer struct {
	mu         sync.Mutex
	activities []activity.Activity
}

// NewBuffered builds a turn whose replies are collected in the returned Buffer.
func NewBuffered(a activity.Activity) (*Context, *Buffer) {
	buf := &Buffer{}
	return New(a, buf), buf
}

func (b *Buffer) Send(_ context.Context, a activity.Activity) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activities = append(b.activities, a)
	return nil
}

// Activities returns a copy of every activity sent so far.
func (b *Buffer) Activities() []activity.Activity {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]activity.Activity, len(b.activities))
	copy(out, b.activities)
	return out
}

// InvokeResponse returns the first queued invoke response.
func (b *Buffer) InvokeResponse() (activity.InvokeResponse, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, a := range b.activities {
		if resp, ok := activity.InvokeResponseOf(a); ok {
			return resp, true
		}
	}

	return activity.InvokeResponse{}, false
}
