package logging

import (
    "io"
    "os"
    "strings"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger. format is console or json;
// an unknown level falls back to info.
func Setup(level, format string) {
    SetupWriter(os.Stderr, level, format)
}

func SetupWriter(w io.Writer, level, format string) {
    zerolog.TimeFieldFormat = time.RFC3339
    zerolog.SetGlobalLevel(ParseLevel(level))
    if strings.EqualFold(format, "json") {
        log.Logger = zerolog.New(w).With().Timestamp().Logger()
        return
    }
    log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// ParseLevel maps a level name to zerolog; empty or unknown names are info.
func ParseLevel(level string) zerolog.Level {
    l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
    if err != nil || l == zerolog.NoLevel { return zerolog.InfoLevel }
    return l
}
