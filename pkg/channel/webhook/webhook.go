package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"composebot/pkg/activity"
	"composebot/pkg/channel"
	"composebot/pkg/config"

	"github.com/google/uuid"
)

const (
	channelName     = "webhook"
	defaultHost     = "0.0.0.0"
	defaultPort     = 3978
	defaultPath     = "/api/messages"
	maxActivitySize = 1 << 20
)

// Adapter accepts activities over HTTP and answers invokes synchronously.
type Adapter struct {
	addr string
	path string
	log  *slog.Logger
}

// NewAdapter resolves bind settings and constructs an adapter instance.
func NewAdapter(cfg config.WebhookConfig, log *slog.Logger) (*Adapter, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = defaultHost
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("channels.webhook.port %d is out of range", port)
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("channels.webhook.path %q must start with /", path)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		addr: host + ":" + strconv.Itoa(port),
		path: path,
		log:  log.With("component", "channel.webhook"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run serves the activity endpoint until ctx is done.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	mux := http.NewServeMux()
	mux.Handle(a.path, a.httpHandler(handler))

	server := &http.Server{
		Addr:              a.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	a.log.Info("Webhook channel started", "address", a.addr, "path", a.path)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve webhook: %w", err)
	}

	return nil
}

func (a *Adapter) httpHandler(handler channel.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		inbound, err := decodeActivity(r.Body)
		if err != nil {
			a.log.Debug("Rejecting malformed activity", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		a.log.Debug("Received activity", "activity_id", inbound.ID, "type", inbound.Type, "name", inbound.Name)

		reply, err := handler(r.Context(), inbound)
		if err != nil {
			a.log.Error("Failed to process activity", "activity_id", inbound.ID, "error", err)
		}

		if reply.InvokeResponse != nil {
			a.writeJSON(w, reply.InvokeResponse.Status, reply.InvokeResponse.Body)
			return
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if len(reply.Activities) == 0 {
			w.WriteHeader(http.StatusAccepted)
			return
		}

		a.writeJSON(w, http.StatusOK, reply.Activities)
	})
}

func (a *Adapter) writeJSON(w http.ResponseWriter, status int, body any) {
	if status == 0 {
		status = http.StatusOK
	}

	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.log.Error("Failed to write webhook response", "error", err)
	}
}

// decodeActivity reads one activity and assigns an id when the sender left it empty.
func decodeActivity(body io.Reader) (activity.Activity, error) {
	var inbound activity.Activity
	if err := json.NewDecoder(io.LimitReader(body, maxActivitySize)).Decode(&inbound); err != nil {
		return activity.Activity{}, fmt.Errorf("decode activity: %w", err)
	}

	if strings.TrimSpace(inbound.Type) == "" {
		return activity.Activity{}, errors.New("activity type is required")
	}
	if inbound.ID == "" {
		inbound.ID = uuid.NewString()
	}
	if inbound.ChannelID == "" {
		inbound.ChannelID = channelName
	}

	return inbound, nil
}
