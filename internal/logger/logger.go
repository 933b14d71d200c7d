package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

func New(env string) zerolog.Logger {
	return NewWithWriter(env, os.Stderr)
}

func NewWithWriter(env string, out io.Writer) zerolog.Logger {
	log := zerolog.New(out).With().Timestamp().Str("service", "parking-service").Logger()
	switch env {
	case "development":
		log = log.Output(zerolog.ConsoleWriter{Out: out})
	case "test":
		log = log.Level(zerolog.Disabled)
	}
	return log
}
