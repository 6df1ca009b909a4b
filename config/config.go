package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Web configures the browser-facing front end.
type Web struct {
	HTTPAddr      string        `env:"WEB_HTTP_ADDR" envDefault:":8080"`
	ActivitiesURL string        `env:"WEB_ACTIVITIES_URL" envDefault:"http://localhost:8000"`
	DBPath        string        `env:"WEB_DB_PATH" envDefault:"web.db"`
	HTTPTimeout   time.Duration `env:"WEB_HTTP_TIMEOUT" envDefault:"10s"`
}

// Activities configures the activities service.
type Activities struct {
	HTTPAddr     string `env:"ACTIVITIES_HTTP_ADDR" envDefault:":8000"`
	Store        string `env:"ACTIVITIES_STORE" envDefault:"bolt"`
	DBPath       string `env:"ACTIVITIES_DB_PATH" envDefault:"activities.db"`
	TeachersFile string `env:"ACTIVITIES_TEACHERS_FILE" envDefault:"teachers.json"`
	FrontendURL  string `env:"ACTIVITIES_FRONTEND_URL"`
}

// Telemetry is shared by both binaries. Tracing stays off unless an
// endpoint is given.
type Telemetry struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvFrom loads configuration from the given environment instead of the
// process environment.
func ParseEnvFrom(target any, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseWeb loads env defaults and then applies flag overrides.
func ParseWeb(fs *flag.FlagSet, args []string) (Web, error) {
	var cfg Web
	if err := ParseEnv(&cfg); err != nil {
		return Web{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.ActivitiesURL, "activities-url", cfg.ActivitiesURL, "Activities service base URL")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path of the profile database")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout for calls to the activities service")
	if err := fs.Parse(args); err != nil {
		return Web{}, err
	}
	if cfg.ActivitiesURL == "" {
		return Web{}, errors.New("activities url is required")
	}
	return cfg, nil
}

// ParseActivities loads env defaults and then applies flag overrides.
func ParseActivities(fs *flag.FlagSet, args []string) (Activities, error) {
	var cfg Activities
	if err := ParseEnv(&cfg); err != nil {
		return Activities{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Activity store backend (bolt or sqlite)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path of the activity database")
	fs.StringVar(&cfg.TeachersFile, "teachers", cfg.TeachersFile, "Path of the teachers JSON file")
	fs.StringVar(&cfg.FrontendURL, "frontend-url", cfg.FrontendURL, "Where GET / redirects to")
	if err := fs.Parse(args); err != nil {
		return Activities{}, err
	}
	switch cfg.Store {
	case "bolt", "sqlite":
	default:
		return Activities{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}
