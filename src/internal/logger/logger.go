package logger

import (
	"os"

	"chathub-presence-svc/src/internal/config"

	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger from the logs section of the
// configuration. Unknown levels fall back to info.
func Init(cfg *config.Configuration) {
	log := logrus.StandardLogger()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Logs.Level)
	if err != nil {
		level = logrus.InfoLevel
		log.WithField("level", cfg.Logs.Level).Warn("Unknown log level, using info")
	}
	log.SetLevel(level)

	if cfg.Logs.EnableJSONOutput {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
