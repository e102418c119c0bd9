package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Config controls how New builds the root logger
type Config struct {
	Level          string
	DateTimeLayout string
	Colored        bool
	JSON           bool
	Output         io.Writer
}

// New creates the console (or JSON) zerolog logger used by forecastx
func New(cfg Config) (*zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var logger zerolog.Logger
	if cfg.JSON {
		logger = zerolog.New(out)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:             out,
			NoColor:         !cfg.Colored,
			TimeFormat:      cfg.DateTimeLayout,
			FormatLevel:     formatLevel,
			FormatMessage:   formatMessage,
			FormatCaller:    formatCaller,
			FormatTimestamp: func(i any) string { return formatTimestamp(i, cfg.DateTimeLayout) },
		})
	}

	logger = logger.Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &logger, nil
}

func formatLevel(i any) string {
	levelStr, ok := i.(string)
	if !ok {
		return "UNKNOWN"
	}

	switch levelStr {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[%s]", strings.ToUpper(levelStr[:3]))
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[%s]", strings.ToUpper(levelStr[:3]))
	default:
		return term.Whitef("[UNK]")
	}
}

func formatMessage(i any) string {
	const maxSize = 80

	msg, ok := i.(string)
	if !ok || len(msg) == 0 {
		return ">"
	}

	if len(msg) > maxSize {
		msg = msg[:maxSize]
	}

	return term.Whitef("> %-*s", maxSize, msg)
}

func formatCaller(i any) string {
	const maxFileSize = 18

	fname, ok := i.(string)
	if !ok || len(fname) == 0 {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(fname), ":")
	if !found {
		return fname
	}

	if len(file) > maxFileSize {
		file = file[:maxFileSize]
	}

	return term.Yellowf("[%-*s:%4s]", maxFileSize, file, line)
}

func formatTimestamp(i any, layout string) string {
	strTime, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.ParseInLocation(time.RFC3339, strTime, time.Local); err == nil {
		strTime = ts.In(time.Local).Format(layout)
	}

	return term.Cyanf("[%s]", strTime)
}
