package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module themselves.
type Logger = zerolog.Logger

// NewLogger builds the service logger from APP_ENV and LOG_LEVEL.
// Development gets console output at debug; everything else JSON at info.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, os.Getenv("LOG_LEVEL"))
}

func newLogger(w io.Writer, appEnv, levelName string) zerolog.Logger {
	dev := appEnv == "" || appEnv == "development"
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if lvl, err := zerolog.ParseLevel(levelName); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	if dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "postgen").Str("env", appEnv).Logger()
}
