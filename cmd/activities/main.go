// Command activities serves the activities API: the activity list, teacher
// login sessions and roster changes.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Bios-Marcel/mergington/config"
	"github.com/Bios-Marcel/mergington/internal/httpserver"
	"github.com/Bios-Marcel/mergington/service"
	"github.com/Bios-Marcel/mergington/telemetry"
)

func main() {
	cfg, err := config.ParseActivities(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	var telemetryCfg config.Telemetry
	if err := config.ParseEnv(&telemetryCfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("service", "activities")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, "activities", telemetryCfg)
	if err != nil {
		log.Fatalf("setup telemetry: %v", err)
	}
	defer shutdownTelemetry(context.Background())

	teachers, err := service.LoadTeachers(cfg.TeachersFile)
	if err != nil {
		log.Fatal(err)
	}
	if len(teachers) == 0 {
		logger.Warn("no teachers configured, nobody can log in", "file", cfg.TeachersFile)
	}

	var activities service.ActivityStore
	switch cfg.Store {
	case "sqlite":
		activities, err = service.OpenSQLite(ctx, cfg.DBPath, service.DefaultActivities())
	default:
		activities, err = service.OpenBolt(cfg.DBPath, service.DefaultActivities())
	}
	if err != nil {
		log.Fatal(err)
	}
	defer activities.Close()

	server := service.NewServer(service.Config{
		Store:       activities,
		Teachers:    teachers,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger,
	})
	if err := httpserver.Serve(ctx, cfg.HTTPAddr, telemetry.Handler(server.Router(), "activities"), logger); err != nil {
		logger.Error("serve", "error", err)
		stop()
		activities.Close()
		os.Exit(1)
	}
}
