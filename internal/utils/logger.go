package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	level := zerolog.InfoLevel
	if os.Getenv("CRM_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Caller().Logger()
}

func LogDebug(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}

func LogInfo(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func LogError(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func LogWarning(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func TimeTrack(start time.Time, name string) {
	LogDebug("%s levou %s", name, time.Since(start))
}
