package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a level name to a zerolog level. Unknown names select info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Init installs the global logger. A nil writer logs to stderr through a
// human readable console writer.
func Init(level zerolog.Level, w io.Writer) {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	log.Logger = zerolog.New(w).Level(level).With().Timestamp().Logger()

	if level <= zerolog.DebugLevel {
		log.Debug().Msg("Log level set to DEBUG")
	}
}
