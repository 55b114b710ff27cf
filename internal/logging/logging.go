package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger for the given component. Level comes from LOG_LEVEL;
// the default only shows errors so the terminal UI stays clean.
func New(component string) zerolog.Logger {
	level := zerolog.ErrorLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error", "production", "prod":
			level = zerolog.ErrorLevel
		}
	}

	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}
