package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cesium-ml/baselayer/client"
	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/logger"
	"github.com/cesium-ml/baselayer/mqtt"
	"github.com/cesium-ml/baselayer/relay"
	"github.com/cesium-ml/baselayer/ui"
)

const (
	DEFAULT_CONFIG_FILE = "baselayer.yaml"
	FORCE_EXIT_TIMEOUT  = 10 * time.Second
)

type App struct {
	config *config.Config
	bus    mqtt.Client
	logger logger.Logger
}

func NewApp(configFile string) (*App, error) {
	cfg, err := config.LoadOrCreateConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logger.New(&cfg.Logging, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.MQTT.Enabled {
		app.bus = mqtt.NewPahoClient(&cfg.MQTT, logger.With("mqtt"))
	}

	return app, nil
}

// Connect runs the terminal client, redrawing the status indicator and
// notification banners on out.
func (a *App) Connect(ctx context.Context, out io.Writer) error {
	c, err := client.New(a.config, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	screen := ui.NewScreen(out)
	screen.SetStatus(c.Status())
	c.OnStatusChange(screen.SetStatus)
	c.Store().Subscribe(screen.SetNotifications)

	a.logger.Info("Connecting to %s", a.config.Socket.URL)
	return c.Run(ctx)
}

// Serve runs the relay, forwarding bus messages when MQTT is enabled.
func (a *App) Serve(ctx context.Context) error {
	server := relay.NewServer(a.config, a.logger.With("relay"))

	if a.bus != nil {
		if err := a.bus.Connect(); err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer func() {
			if err := a.bus.Disconnect(); err != nil {
				a.logger.Error("Failed to disconnect from MQTT broker: %v", err)
			}
		}()

		if err := server.AttachBus(a.bus, a.config.MQTT.TopicPrefix); err != nil {
			return fmt.Errorf("failed to subscribe to message bus: %w", err)
		}
	} else {
		a.logger.Warn("MQTT is disabled, the relay will not receive pushed messages")
	}

	return server.Run(ctx)
}

// Push publishes one action for userID on the bus.
func (a *App) Push(userID, actionType string, payload json.RawMessage) error {
	return a.withFlow(func(flow *mqtt.Flow) error {
		return flow.Push(userID, actionType, payload)
	})
}

func (a *App) Notify(userID, note, level string) error {
	return a.withFlow(func(flow *mqtt.Flow) error {
		return flow.PushNotification(userID, note, level)
	})
}

func (a *App) withFlow(fn func(*mqtt.Flow) error) error {
	if a.bus == nil {
		return fmt.Errorf("mqtt must be enabled to push messages")
	}

	if err := a.bus.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	defer func() {
		if err := a.bus.Disconnect(); err != nil {
			a.logger.Error("Failed to disconnect from MQTT broker: %v", err)
		}
	}()

	return fn(mqtt.NewFlow(a.bus, &a.config.MQTT, a.logger.With("flow")))
}

// IssueToken signs a socket token for userID with the server secret.
func (a *App) IssueToken(userID string) (string, error) {
	issuer := relay.NewTokenIssuer(a.config.Server.SecretKey, a.config.Server.GetTokenLifetime())
	return issuer.Issue(userID)
}

// runUntilSignal cancels run's context on the first SIGINT/SIGTERM and
// exits on the second, or when shutdown takes too long.
func runUntilSignal(run func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		log.Println("Received shutdown signal")
		log.Println("Initiating graceful shutdown... (press Ctrl+C again to force quit)")
		cancel()

		go func() {
			time.Sleep(FORCE_EXIT_TIMEOUT)
			log.Printf("Force shutdown after %v", FORCE_EXIT_TIMEOUT)
			os.Exit(1)
		}()

		<-sigChan
		log.Println("Force quit requested")
		os.Exit(1)
	}()

	return run(ctx)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
