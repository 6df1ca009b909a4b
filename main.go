// Command mergington serves the activity signup pages. Activities, rosters
// and teacher sessions live in the activities service (see cmd/activities);
// this process only keeps each browser profile's session pair.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Bios-Marcel/mergington/client"
	"github.com/Bios-Marcel/mergington/config"
	"github.com/Bios-Marcel/mergington/internal/httpserver"
	"github.com/Bios-Marcel/mergington/store"
	"github.com/Bios-Marcel/mergington/telemetry"
	"github.com/Bios-Marcel/mergington/web"
)

func main() {
	cfg, err := config.ParseWeb(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	var telemetryCfg config.Telemetry
	if err := config.ParseEnv(&telemetryCfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", "web")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "web", telemetryCfg)
	if err != nil {
		log.Fatalf("setup telemetry: %v", err)
	}
	defer shutdownTelemetry(context.Background())

	// The bolt file is created if it doesn't exist.
	profiles, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer profiles.Close()

	api := client.New(cfg.ActivitiesURL, &http.Client{
		Transport: telemetry.Transport(nil),
		Timeout:   cfg.HTTPTimeout,
	})
	server := web.NewServer(api, profiles, web.WithLogger(logger))

	if err := httpserver.Serve(ctx, cfg.HTTPAddr, telemetry.Handler(server.Router(), "web"), logger); err != nil {
		logger.Error("serve", "error", err)
		stop()
		profiles.Close()
		os.Exit(1)
	}
}
