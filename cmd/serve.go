package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"composebot/pkg/bus"
	"composebot/pkg/channel"
	"composebot/pkg/channel/natsrpc"
	"composebot/pkg/channel/telegram"
	"composebot/pkg/channel/webhook"
	"composebot/pkg/config"
	"composebot/pkg/demo"
	"composebot/pkg/gateway"
	"composebot/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot on every enabled channel",
	Long:  "Runs the demo message extension behind the enabled channels with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		adapters, err := enabledAdapters(cfg, appLogger)
		if err != nil {
			log.Error("Channel configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application := demo.NewApplication(demo.DefaultCatalog(), appLogger)
		events := bus.NewEventBus()
		svc, err := gateway.NewService(cfg, gateway.Routes(application, demo.NewState), adapters, events, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		go logEvents(runCtx, events, log)

		log.Info("Gateway started", "channels", enabledChannelNames(adapters))
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 3)

	if cfg.Channels.Webhook.Enabled {
		adapter, err := webhook.NewAdapter(cfg.Channels.Webhook, log)
		if err != nil {
			return nil, fmt.Errorf("configure webhook channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.NATS.Enabled {
		adapter, err := natsrpc.NewAdapter(cfg.Channels.NATS, log)
		if err != nil {
			return nil, fmt.Errorf("configure nats channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

// logEvents writes turn outcomes to the log until ctx is done. Failures are
// already logged by the gateway.
func logEvents(ctx context.Context, events *bus.EventBus, log *slog.Logger) {
	ch, unsubscribe := events.Subscribe(ctx, 0)
	defer unsubscribe()

	for event := range ch {
		switch event.Type {
		case bus.EventTurnResponded:
			log.Debug("Turn responded", "channel", event.Channel, "request_id", event.RequestID, "name", event.Name, "command_id", event.CommandID, "status", event.Status)
		case bus.EventTurnUnhandled:
			log.Info("Turn unhandled", "channel", event.Channel, "request_id", event.RequestID, "type", event.ActivityType, "name", event.Name)
		}
	}
}
