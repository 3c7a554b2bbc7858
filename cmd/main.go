package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cameraled/internal/api"
	"cameraled/internal/clock"
	"cameraled/internal/config"
	"cameraled/internal/dbus"
	"cameraled/internal/indicator"
	"cameraled/internal/loop"
	"cameraled/internal/metrics"
	"cameraled/internal/monitor"
	"cameraled/internal/mqtt"
	"cameraled/internal/pipewire"
	"cameraled/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	exitOK        = 0
	exitFatal     = 1
	exitViolation = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.NewLoader(zap.NewNop()).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFatal
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return exitFatal
	}
	defer logger.Sync()

	logger = logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("Starting camera LED monitor",
		zap.String("pw_dump", cfg.DumpPath),
		zap.String("status_addr", cfg.StatusAddr),
		zap.Bool("mqtt", cfg.MQTTBroker != ""),
		zap.Bool("read_only", cfg.ReadOnly))

	stateManager := state.NewManager(logger, clock.NewRealClock())
	m := metrics.New()

	var controller indicator.Controller = dbus.NewLogind(logger)
	if cfg.ReadOnly {
		logger.Info("Running in READ-ONLY mode - the indicator will not be changed")
		controller = indicator.NewDryRun(logger)
	}

	if cfg.StatusAddr != "" {
		server := api.NewServer(stateManager, m.Handler(), logger, cfg.StatusAddr)
		if err := server.Start(); err != nil {
			logger.Error("Failed to start status API", zap.Error(err))
			return exitFatal
		}
		defer func() {
			if err := server.Stop(); err != nil {
				logger.Warn("Failed to stop status API", zap.Error(err))
			}
		}()
	}

	if cfg.MQTTBroker != "" {
		mirror, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTTopic, stateManager, logger)
		if err != nil {
			// the mirror is optional; the indicator still works without it
			logger.Warn("MQTT mirror disabled", zap.Error(err))
		} else {
			mirror.Start()
			defer mirror.Stop()
		}
	}

	core := pipewire.NewCore(logger)
	mon := monitor.New(monitor.Options{
		Core:         core,
		Source:       pipewire.NewMonitor(cfg.DumpPath, core, logger),
		Controller:   controller,
		Notifier:     dbus.NewNotifications(logger),
		StateManager: stateManager,
		Metrics:      m,
		Logger:       logger,
	})

	err = mon.Run(context.Background())
	switch {
	case err == nil:
		logger.Info("Shut down cleanly")
		return exitOK
	case errors.Is(err, loop.ErrOwnershipViolation):
		logger.Error("Internal consistency violation", zap.Error(err))
		fmt.Fprintf(os.Stderr, "camera-led: %v\n", err)
		return exitViolation
	default:
		logger.Error("Monitor failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "camera-led: %v\n", err)
		return exitFatal
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zcfg := zap.NewProductionConfig()
	if strings.EqualFold(cfg.LogFormat, "console") {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
