// Package natsrpc serves activities over NATS request/reply: each request
// carries one activity as JSON and its reply carries the turn's outcome.
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"composebot/pkg/activity"
	"composebot/pkg/channel"
	"composebot/pkg/config"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"
)

const (
	channelName    = "nats"
	defaultSubject = "composebot.activities"
	connectTimeout = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

// Response is the reply payload published for each request.
type Response struct {
	Status     int                 `json:"status"`
	Body       any                 `json:"body,omitempty"`
	Activities []activity.Activity `json:"activities,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Adapter subscribes to one subject and answers each activity request.
type Adapter struct {
	url     string
	subject string
	queue   string
	log     *slog.Logger
}

// NewAdapter validates NATS settings and constructs an adapter instance.
func NewAdapter(cfg config.NATSConfig, log *slog.Logger) (*Adapter, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("channels.nats.url is required")
	}

	subject := strings.TrimSpace(cfg.Subject)
	if subject == "" {
		subject = defaultSubject
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		url:     url,
		subject: subject,
		queue:   strings.TrimSpace(cfg.Queue),
		log:     log.With("component", "channel.natsrpc"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run connects, subscribes, and serves requests until ctx is done.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	nc, err := comms.Connect(a.url, comms.Name("composebot"), comms.Timeout(connectTimeout))
	if err != nil {
		return fmt.Errorf("connect to nats at %s: %w", a.url, err)
	}
	defer nc.Close()

	callback := func(msg *comms.Msg) {
		a.serve(ctx, handler, msg)
	}

	var sub *comms.Subscription
	if a.queue != "" {
		sub, err = nc.QueueSubscribe(a.subject, a.queue, callback)
	} else {
		sub, err = nc.Subscribe(a.subject, callback)
	}
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", a.subject, err)
	}

	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flush subscription: %w", err)
	}

	a.log.Info("NATS channel started", "subject", a.subject, "queue", a.queue)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		a.log.Debug("Failed to drain subscription", "error", err)
	}
	drainDeadline := time.Now().Add(drainTimeout)
	for sub.IsValid() && time.Now().Before(drainDeadline) {
		time.Sleep(10 * time.Millisecond)
	}

	return nil
}

func (a *Adapter) serve(ctx context.Context, handler channel.Handler, msg *comms.Msg) {
	resp := a.process(ctx, handler, msg.Data)
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		a.log.Error("Failed to encode reply", "error", err)
		return
	}

	if err := msg.Respond(data); err != nil {
		a.log.Error("Failed to publish reply", "error", err)
	}
}

// process runs one request through handler and builds its reply.
func (a *Adapter) process(ctx context.Context, handler channel.Handler, data []byte) Response {
	var inbound activity.Activity
	if err := json.Unmarshal(data, &inbound); err != nil {
		return Response{Status: http.StatusBadRequest, Error: fmt.Sprintf("decode activity: %v", err)}
	}
	if strings.TrimSpace(inbound.Type) == "" {
		return Response{Status: http.StatusBadRequest, Error: "activity type is required"}
	}
	if inbound.ID == "" {
		inbound.ID = uuid.NewString()
	}
	if inbound.ChannelID == "" {
		inbound.ChannelID = channelName
	}

	reply, err := handler(ctx, inbound)
	resp := Response{Status: http.StatusAccepted, Activities: reply.Activities}
	if reply.InvokeResponse != nil {
		resp.Status = reply.InvokeResponse.Status
		resp.Body = reply.InvokeResponse.Body
	}
	if err != nil {
		a.log.Error("Failed to process activity", "activity_id", inbound.ID, "error", err)
		resp.Error = err.Error()
		if reply.InvokeResponse == nil {
			resp.Status = http.StatusInternalServerError
		}
	}

	return resp
}
