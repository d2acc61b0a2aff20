// Package main starts the three-finger-drag daemon.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/niubaoshu/linux-3-finger-drag/internal/app"
	"github.com/niubaoshu/linux-3-finger-drag/internal/config"
	"github.com/niubaoshu/linux-3-finger-drag/internal/drag"
	"github.com/niubaoshu/linux-3-finger-drag/internal/touchpad"
	"github.com/niubaoshu/linux-3-finger-drag/internal/vpointer"
)

// run wires the daemon and blocks until shutdown.
func run(configPath string, debug bool) error {
	cfg := loadConfig(configPath)

	logger, closeLog, err := setupLogger(cfg, debug)
	if err != nil {
		return err
	}
	defer closeLog()
	logStartup(logger, cfg)

	sink, err := vpointer.Create()
	if err != nil {
		return err
	}
	logger.Info().Msg("virtual pointer created")
	defer func() {
		if err := sink.Destroy(); err != nil {
			logger.Error().Err(err).Msg("virtual pointer teardown failed")
		}
	}()

	ctrlSink, err := sink.Clone()
	if err != nil {
		return err
	}
	defer func() {
		if err := ctrlSink.Close(); err != nil {
			logger.Error().Err(err).Msg("controller descriptor close failed")
		}
	}()

	pads, err := touchpad.FindAll(logger.With().Str("component", "touchpad").Logger())
	if err != nil {
		return err
	}

	var shouldExit atomic.Bool
	notifyShutdown(&shouldExit, logger)

	signals := make(chan drag.ControlSignal, drag.SignalBuffer)
	controller := drag.NewDelayController(ctrlSink, cfg.DragEndDelay, signals,
		logger.With().Str("component", "delay").Logger())
	ctrlDone := make(chan error, 1)
	go func() {
		ctrlDone <- controller.Run()
	}()

	translator := drag.NewTranslator(sink, signals, drag.Tuning{
		Acceleration: cfg.Acceleration,
		DragEndDelay: cfg.DragEndDelay,
		ResponseTime: cfg.ResponseTime,
	}, logger.With().Str("component", "translator").Logger())

	loop := app.New(translator, pads, ctrlDone, &shouldExit,
		logger.With().Str("component", "app").Logger())
	runErr := loop.Run()

	// The button must never be left held, whatever ended the loop.
	if err := sink.Release(); err != nil {
		logger.Error().Err(err).Msg("final release failed")
	}
	for _, pad := range pads {
		_ = pad.Close()
	}
	return runErr
}

// loadConfig loads the given path, or the default XDG location when empty.
// Any problem falls back to defaults; the logger is not up yet, so warnings
// go to stderr directly.
func loadConfig(path string) config.Config {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
			return config.Default()
		}
		path = p
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v, using defaults\n", err)
		return config.Default()
	}
	return cfg
}

// setupLogger builds the root logger per the config. The returned func
// closes the log file, if any.
func setupLogger(cfg config.Config, debug bool) (zerolog.Logger, func(), error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	if debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	closeLog := func() {}
	var logger zerolog.Logger
	if cfg.LogFile == "stdout" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { _ = f.Close() }
		logger = zerolog.New(f)
	}
	return logger.Level(level).With().Timestamp().Logger(), closeLog, nil
}

// parseLevel maps a config log level to zerolog's.
func parseLevel(s string) (zerolog.Level, error) {
	switch s {
	case "off":
		return zerolog.Disabled, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	default:
		return zerolog.Disabled, fmt.Errorf("unknown log level %q", s)
	}
}

// notifyShutdown flips the exit flag on SIGINT or SIGTERM. A second signal
// while shutdown is in progress kills the process the default way.
func notifyShutdown(flag *atomic.Bool, logger zerolog.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		flag.Store(true)
		signal.Stop(ch)
	}()
}

// logStartup reports the effective configuration.
func logStartup(logger zerolog.Logger, cfg config.Config) {
	logger.Info().
		Float64("acceleration", cfg.Acceleration).
		Dur("dragEndDelay", cfg.DragEndDelay).
		Dur("responseTime", cfg.ResponseTime).
		Str("logLevel", cfg.LogLevel).
		Msg("three-finger drag starting")
}

// logFatal prints and exits for startup failures.
func logFatal(err error) {
	log.Printf("fatal: %v", err)
	os.Exit(1)
}
