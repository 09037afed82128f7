package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/square-key-labs/callbridge-ai/src/config"
	"github.com/square-key-labs/callbridge-ai/src/logger"
	"github.com/square-key-labs/callbridge-ai/src/server"
)

func main() {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg).Start(ctx); err != nil {
		logger.Error("Server error: %v", err)
		os.Exit(1)
	}
}
