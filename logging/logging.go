// Package logging builds the zerolog loggers handed to the sync core.
//
// Components never log through a global logger: each receives a
// zerolog.Logger through its options and defaults to zerolog.Nop().
//
//	logger, err := logging.New(logging.Config{Level: "debug", Format: "console"})
//	qc, err := cache.New(store, loader, cache.WithLogger(logger))
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error or disabled.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
	// Caller adds file and line to every event.
	Caller bool `koanf:"caller"`
	// Timestamp adds a time field to every event.
	Timestamp bool `koanf:"timestamp"`
}

func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    FormatJSON,
		Timestamp: true,
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.By(func(any) error {
			_, err := parseLevel(c.Level)
			return err
		})),
		validation.Field(&c.Format, validation.Required, validation.In(FormatJSON, FormatConsole)),
	)
}

// New builds a logger writing to stderr.
func New(cfg Config) (zerolog.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to out. Empty level and format
// fall back to the defaults.
func NewWithWriter(cfg Config, out io.Writer) (zerolog.Logger, error) {
	def := DefaultConfig()
	if cfg.Level == "" {
		cfg.Level = def.Level
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: %w", err)
	}

	level, _ := parseLevel(cfg.Level)
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	ctx := zerolog.New(out).Level(level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel, nil
	case "disabled":
		return zerolog.Disabled, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
