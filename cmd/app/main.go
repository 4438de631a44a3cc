package main

import (
	"context"
	"flag"
	"log"
	"os"

	"PanelPull/internal/di"
	"PanelPull/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "build the configured panels once and exit")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s backend=%s interval=%s workers=%d",
		cfg.Environment, cfg.Backend.Type, cfg.Data.Interval, cfg.Pipeline.Workers)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// One-shot batch build, for cron jobs and backfills
	if *once {
		if err := app.RunOnce(context.Background()); err != nil {
			log.Printf("batch build error: %v", err)
			os.Exit(1)
		}
		return
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
