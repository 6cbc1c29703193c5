package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"composebot/pkg/activity"
	"composebot/pkg/bus"
	"composebot/pkg/channel"
	"composebot/pkg/config"
	"composebot/pkg/turn"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790
)

// Service runs every channel adapter against one router and serves
// health and readiness endpoints.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	router   Router
	channels []channel.Adapter
	events   *bus.EventBus

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
	turns         turnCounters
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type turnCounters struct {
	Received  int64 `json:"received"`
	Responded int64 `json:"responded"`
	Unhandled int64 `json:"unhandled"`
	Failed    int64 `json:"failed"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Turns         turnCounters            `json:"turns"`
	Channels      map[string]channelState `json:"channels"`
}

// NewService wires adapters to router. events may be nil.
func NewService(cfg *config.Config, router Router, adapters []channel.Adapter, events *bus.EventBus, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if events == nil {
		events = bus.NewEventBus()
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		router:        router,
		channels:      adapters,
		events:        events,
		channelStates: channelStates,
	}, nil
}

// Events returns the bus turn lifecycle events are published on.
func (s *Service) Events() *bus.EventBus {
	return s.events
}

// Run starts the status server and every adapter, and blocks until ctx is
// done or one of them fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.events.Close()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	serverErrors := make(chan error, 1)
	go s.runHealthServer(ctx, serverErrors)

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handlerFor(adapter.Name()))
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

func (s *Service) handlerFor(channelName string) channel.Handler {
	return func(ctx context.Context, inbound activity.Activity) (channel.Reply, error) {
		return s.handleActivity(ctx, channelName, inbound)
	}
}

// handleActivity runs one turn. An invoke that no route answered gets 501,
// and one whose handler failed gets 500.
func (s *Service) handleActivity(ctx context.Context, channelName string, inbound activity.Activity) (channel.Reply, error) {
	event := bus.Event{
		Channel:      channelName,
		RequestID:    inbound.ID,
		ActivityType: inbound.Type,
		Name:         inbound.Name,
	}
	event.CommandID, _ = inbound.StringField("commandId")

	s.count(func(c *turnCounters) { c.Received++ })
	s.publish(ctx, event, bus.EventTurnReceived)

	tc, buf := turn.NewBuffered(inbound)
	matched, err := s.router.Route(ctx, tc)

	reply := channel.Reply{}
	for _, outbound := range buf.Activities() {
		if outbound.Type == activity.TypeInvokeResponse {
			continue
		}
		reply.Activities = append(reply.Activities, outbound)
	}
	if resp, ok := buf.InvokeResponse(); ok {
		reply.InvokeResponse = &resp
	}

	isInvoke := inbound.Type == activity.TypeInvoke

	switch {
	case err != nil:
		if isInvoke && reply.InvokeResponse == nil {
			reply.InvokeResponse = &activity.InvokeResponse{Status: http.StatusInternalServerError}
		}
		s.log.Error("Turn failed", "channel", channelName, "activity_id", inbound.ID, "type", inbound.Type, "name", inbound.Name, "error", err)
		event.Error = err.Error()
		event.Status = statusOf(reply)
		s.count(func(c *turnCounters) { c.Failed++ })
		s.publish(ctx, event, bus.EventTurnFailed)
		return reply, err
	case isInvoke && reply.InvokeResponse == nil:
		reply.InvokeResponse = &activity.InvokeResponse{Status: http.StatusNotImplemented}
		s.log.Warn("Invoke not handled", "channel", channelName, "name", inbound.Name, "matched", matched)
		event.Status = http.StatusNotImplemented
		s.count(func(c *turnCounters) { c.Unhandled++ })
		s.publish(ctx, event, bus.EventTurnUnhandled)
	case !matched:
		s.log.Debug("No route matched", "channel", channelName, "type", inbound.Type)
		s.count(func(c *turnCounters) { c.Unhandled++ })
		s.publish(ctx, event, bus.EventTurnUnhandled)
	default:
		event.Status = statusOf(reply)
		s.log.Debug("Turn responded", "channel", channelName, "name", inbound.Name, "status", event.Status)
		s.count(func(c *turnCounters) { c.Responded++ })
		s.publish(ctx, event, bus.EventTurnResponded)
	}

	return reply, nil
}

func (s *Service) publish(ctx context.Context, event bus.Event, eventType bus.EventType) {
	event.Type = eventType
	s.events.Publish(ctx, event)
}

func (s *Service) count(update func(*turnCounters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.turns)
}

func statusOf(reply channel.Reply) int {
	if reply.InvokeResponse == nil {
		return 0
	}
	return reply.InvokeResponse.Status
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Turns:         s.turns,
		Channels:      channels,
	}
}

// isReady reports whether at least one channel is running.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
