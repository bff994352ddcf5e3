package utils

import (
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitLogging configures logrus and, when a DSN is given, Sentry.
func InitLogging(environment, sentryDSN string) error {
	logrus.SetOutput(os.Stdout)
	if environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}

	if sentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryDSN,
		Environment: environment,
	}); err != nil {
		return fmt.Errorf("sentry init failed: %w", err)
	}
	return nil
}
