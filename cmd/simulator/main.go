// Command simulator boots the charging-station fleet simulator: it reads
// the supervisor configuration, spawns the configured stations, and serves
// the operator control plane until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"stationfleet/internal/config"
	"stationfleet/internal/logging"
	"stationfleet/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the simulator configuration file (falls back to $CONFIG_FILE)")
	flag.Parse()

	bootLogger := logging.Must(logging.Config{})

	store, err := config.Load(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("simulator: failed to load configuration", zap.Error(err))
		return 1
	}
	_ = bootLogger.Sync()

	doc := store.Document()
	logger, err := logging.New(logging.Config{Level: doc.Log.Level, Encoding: doc.Log.Encoding})
	if err != nil {
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(store, logger)

	if err := sup.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("simulator: stopped with error", zap.Error(err))
		return 1
	}

	logger.Info("simulator: stopped cleanly")
	return 0
}
