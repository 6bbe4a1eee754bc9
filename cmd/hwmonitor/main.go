package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/hwmonitor/bridge/internal/agent"
	"github.com/hwmonitor/bridge/internal/config"
	"github.com/hwmonitor/bridge/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Defaults, then HWMON_CONFIG/--config, then HWMON_* env, then flags.
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Usage: hwmonitor [flags]\n\n%s", config.Usage())
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	logger, closer, err := config.NewLogger(cfg, "hwmonitor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer closer.Close()

	a, err := agent.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create agent", "err", err)
		return 1
	}

	if cfg.ListPorts {
		return listPorts(a)
	}

	logger.Info("starting hwmonitor",
		"version", config.Version,
		"build_time", config.BuildTime,
		"debug", cfg.Debug,
		"config_file", cfg.File,
	)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		var notFound *domain.DeviceNotFoundError
		if errors.As(err, &notFound) {
			logger.Error("display not found, check the USB cable", "candidates", len(notFound.Candidates))
			for _, d := range notFound.Candidates {
				logger.Info("available port", "device", d.String())
			}
			return 1
		}
		logger.Error("agent exited with error", "err", err)
		return 1
	}

	logger.Info("hwmonitor stopped cleanly")
	return 0
}

func listPorts(a *agent.Agent) int {
	devices, err := a.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list serial ports: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no serial ports found")
		return 0
	}
	for _, d := range devices {
		fmt.Println(d.String())
	}
	return 0
}
