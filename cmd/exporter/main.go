package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/app"
	"github.com/shrimpsizemoose/milestones/internal/export"
)

func main() {
	var (
		configPath = flag.String("config", "config.toml", "Path to config file")
		once       = flag.Bool("once", false, "Export once and exit")
	)
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}

	store, err := app.NewStore(config)
	if err != nil {
		logger.Error.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	exporter := export.NewCSVExporter(config, store)

	if *once {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := exporter.Export(ctx); err != nil {
			logger.Error.Printf("Export failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := exporter.Start(); err != nil {
		logger.Error.Fatalf("Failed to initialize exporter: %v", err)
	}
	defer exporter.Stop()

	logger.Info.Println("Exporter is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info.Println("Exporter stopped")
}
