// Package logging configures the global zerolog logger for HoroloGen.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level   string `json:"level"`  // debug, info, warn, error
	Format  string `json:"format"` // json, pretty
	Console bool   `json:"console"`
}

// DefaultLogConfig returns sensible defaults
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:   "info",
		Format:  "json",
		Console: true,
	}
}

// Setup configures the global logger
func Setup(config *LogConfig) error {
	if config == nil {
		config = DefaultLogConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stdout
	if config.Console && config.Format == "pretty" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	log.Info().
		Str("level", config.Level).
		Str("format", config.Format).
		Msg("Logger initialized")

	return nil
}

// GetLogger returns a contextual logger for a pipeline component
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// GetGenerationLogger returns a logger bound to one generation call
func GetGenerationLogger(generationID string) zerolog.Logger {
	return log.With().
		Str("generation_id", generationID).
		Logger()
}
