package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-gocardless-payments/config"
)

func configureLogging(cfg *config.Config) error {
	level := strings.TrimSpace(cfg.Log.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Log.Level, err)
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return nil
}

// configureErrorReporting initializes Sentry when a DSN is configured and
// returns the flush to run on shutdown.
func configureErrorReporting(cfg *config.Config) func() {
	if cfg.Sentry.DSN == "" {
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     fmt.Sprintf("%s@%s", cfg.App.ServiceName, Version),
		ServerName:  cfg.App.ServiceName,
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to initialize sentry, failures will only be logged")
		return func() {}
	}

	return func() {
		sentry.Flush(2 * time.Second)
	}
}
