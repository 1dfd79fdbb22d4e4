package utils

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

func SetupZerolog(level string) {
	SetupZerologWithOutput(os.Stdout, level)
}

func SetupZerologWithOutput(out io.Writer, level string) {
	// Set up zerolog with custom output to include milliseconds in the timestamp
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02T15:04:05.000-07:00",
	}).With().Timestamp().Logger()
	// https://github.com/rs/zerolog/issues/114
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// ParseLevel falls back to info for anything zerolog does not know.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// Dbg logs non-essential failures.
func Dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

func ErrLog(err error, what string) {
	if err != nil {
		log.Error().Err(err).Msg(what)
	}
}

func Ftl(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("sth essential failed")
		debug.PrintStack()
	}
}
