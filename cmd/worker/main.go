package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/container"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Load()
	if err := logging.Init(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer c.Cleanup()

	logging.Info("Starting queue worker...")
	if err := c.Worker.Start(); err != nil {
		return fmt.Errorf("worker failed to start: %w", err)
	}

	logging.Info("Starting scheduler...", "reminders", cfg.Borrow.ReminderSchedule)
	if err := c.Scheduler.Start(); err != nil {
		return fmt.Errorf("scheduler failed to start: %w", err)
	}

	<-ctx.Done()
	logging.Info("Shutting down worker...")
	return nil
}
