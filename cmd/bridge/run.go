package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"grovepi-bridge/config"
	"grovepi-bridge/internal/application"
	"grovepi-bridge/internal/infra/grovepi"
	"grovepi-bridge/internal/infra/metrics"
	"grovepi-bridge/internal/infra/mqtt"
	"grovepi-bridge/internal/infra/redis"
	"grovepi-bridge/internal/infra/scratch"
	"grovepi-bridge/internal/infra/simulated"
	"grovepi-bridge/internal/infra/status"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
			cfg.Hardware.Driver = driver
		}
		if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
			cfg.Transport.Kind = transport
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := setupLogger(cfg.Log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runBridge(ctx, cfg, logger)
	},
}

func init() {
	runCmd.Flags().String("driver", "", "hardware driver override: grovepi or simulated")
	runCmd.Flags().String("transport", "", "transport override: scratch or mqtt")
	rootCmd.AddCommand(runCmd)
}

func runBridge(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hw, err := createHardware(cfg.Hardware, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn("closing hardware", "error", err)
		}
	}()

	dialer, closeBroker, err := createDialer(cfg.Transport, logger)
	if err != nil {
		return err
	}
	defer closeBroker()

	recorder, closeRecorder := createRecorder(ctx, cfg.Mirror, logger)
	defer closeRecorder()

	reconnectInterval := parseDuration(logger, "reconnect interval", cfg.Transport.ReconnectInterval, application.DefaultReconnectInterval)
	heartbeatInterval := parseDuration(logger, "heartbeat interval", cfg.Heartbeat.Interval, application.DefaultHeartbeatInterval)

	live := &application.Liveness{}
	session := application.NewSession(dialer, reconnectInterval, logger, application.WithObserver(m))
	dispatcher := application.NewDispatcher(hw, session, recorder, m, logger)
	heartbeat := application.NewHeartbeat(heartbeatInterval, live, logger)
	bridge := application.NewBridge(session, application.NewRouter(logger), dispatcher, heartbeat, live, m, logger)

	statusServer := status.NewServer(cfg.Status.Addr, session, live, reg, logger)
	if err := statusServer.Start(); err != nil {
		return err
	}
	defer statusServer.Stop()

	logger.Info("starting grovepi bridge",
		"transport", dialer.Name(),
		"driver", cfg.Hardware.Driver,
	)

	if err := bridge.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("bridge error", "error", err)
		return err
	}
	logger.Info("shutting down")
	return nil
}

type closableHardware interface {
	application.Hardware
	Close() error
}

func createHardware(cfg config.HardwareConfig, logger *slog.Logger) (closableHardware, error) {
	switch cfg.Driver {
	case "simulated":
		return simulated.NewBoard(logger), nil
	case "grovepi":
		hw, err := grovepi.Open(grovepi.Config{
			Bus:        cfg.I2CBus,
			Address:    uint16(cfg.Address),
			LCD:        cfg.LCD,
			LircSocket: cfg.IR.Socket,
			Camera: grovepi.CameraConfig{
				Command: cfg.Camera.Command,
				Dir:     cfg.Camera.Dir,
				Width:   cfg.Camera.Width,
				Height:  cfg.Camera.Height,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening grovepi: %w", err)
		}
		return hw, nil
	default:
		return nil, fmt.Errorf("unknown hardware driver %q", cfg.Driver)
	}
}

func createDialer(cfg config.TransportConfig, logger *slog.Logger) (application.Dialer, func(), error) {
	noop := func() {}

	switch cfg.Kind {
	case "mqtt":
		closeBroker := noop
		if cfg.MQTT.EmbeddedBroker != "" {
			broker, err := mqtt.NewBroker(cfg.MQTT.EmbeddedBroker, logger)
			if err != nil {
				return nil, noop, fmt.Errorf("creating embedded broker: %w", err)
			}
			if err := broker.Serve(); err != nil {
				return nil, noop, fmt.Errorf("starting embedded broker: %w", err)
			}
			logger.Info("embedded mqtt broker listening", "addr", cfg.MQTT.EmbeddedBroker)
			closeBroker = func() {
				if err := broker.Close(); err != nil {
					logger.Warn("closing embedded broker", "error", err)
				}
			}
		}

		dialer, err := mqtt.NewDialer(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			closeBroker()
			return nil, noop, fmt.Errorf("creating mqtt dialer: %w", err)
		}
		return dialer, closeBroker, nil
	case "scratch":
		timeout := parseDuration(logger, "dial timeout", cfg.Scratch.DialTimeout, scratch.DefaultDialTimeout)
		return scratch.NewDialer(cfg.Scratch.Addr, timeout, logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// createRecorder returns the Redis mirror when one is configured and
// reachable. The bridge runs without it otherwise.
func createRecorder(ctx context.Context, cfg config.MirrorConfig, logger *slog.Logger) (application.ValueRecorder, func()) {
	if cfg.RedisAddr == "" {
		return &application.NoopRecorder{}, func() {}
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	mirror, err := redis.Dial(dialCtx, cfg.RedisAddr, cfg.Key)
	if err != nil {
		logger.Warn("redis mirror unavailable, continuing without it", "error", err, "addr", cfg.RedisAddr)
		return &application.NoopRecorder{}, func() {}
	}
	logger.Info("mirroring values to redis", "addr", cfg.RedisAddr, "key", cfg.Key)

	return mirror, func() {
		if err := mirror.Close(); err != nil {
			logger.Warn("closing redis mirror", "error", err)
		}
	}
}

func parseDuration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid "+name+", using default", "error", err, "value", value)
		return fallback
	}
	return d
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
