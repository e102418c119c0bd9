// Package logrus adapts sirupsen/logrus to logger.Logger for deployments
// that already ship logrus formatters or hooks.
package logrus

import (
	"io"

	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/sirupsen/logrus"
)

type Adapter struct {
	entry *logrus.Entry
}

var _ logger.Logger = (*Adapter)(nil)

// New creates a logrus-backed logger writing text (or JSON) to out
func New(out io.Writer, level string, json bool) *Adapter {
	l := logrus.New()
	l.SetOutput(out)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	adapter := &Adapter{entry: logrus.NewEntry(l)}
	adapter.SetLevel(logger.ParseLevel(level))
	return adapter
}

func NewAdapter(entry *logrus.Entry) *Adapter {
	return &Adapter{entry: entry}
}

func (a *Adapter) WithField(key string, value any) logger.Logger {
	return &Adapter{entry: a.entry.WithField(key, value)}
}

func (a *Adapter) WithFields(fields map[string]any) logger.Logger {
	return &Adapter{entry: a.entry.WithFields(fields)}
}

func (a *Adapter) WithError(err error) logger.Logger {
	return &Adapter{entry: a.entry.WithError(err)}
}

func (a *Adapter) Debug(args ...any) { a.entry.Debug(args...) }
func (a *Adapter) Info(args ...any)  { a.entry.Info(args...) }
func (a *Adapter) Warn(args ...any)  { a.entry.Warn(args...) }
func (a *Adapter) Error(args ...any) { a.entry.Error(args...) }
func (a *Adapter) Fatal(args ...any) { a.entry.Fatal(args...) }

func (a *Adapter) Debugf(format string, args ...any) { a.entry.Debugf(format, args...) }
func (a *Adapter) Infof(format string, args ...any)  { a.entry.Infof(format, args...) }
func (a *Adapter) Warnf(format string, args ...any)  { a.entry.Warnf(format, args...) }
func (a *Adapter) Errorf(format string, args ...any) { a.entry.Errorf(format, args...) }
func (a *Adapter) Fatalf(format string, args ...any) { a.entry.Fatalf(format, args...) }

// SetLevel changes the level of the underlying logrus logger, shared by
// every adapter derived from it.
func (a *Adapter) SetLevel(level logger.Level) {
	switch level {
	case logger.Disabled:
		a.entry.Logger.SetOutput(io.Discard)
	case logger.TraceLevel:
		a.entry.Logger.SetLevel(logrus.TraceLevel)
	case logger.DebugLevel:
		a.entry.Logger.SetLevel(logrus.DebugLevel)
	case logger.WarnLevel:
		a.entry.Logger.SetLevel(logrus.WarnLevel)
	case logger.ErrorLevel:
		a.entry.Logger.SetLevel(logrus.ErrorLevel)
	case logger.FatalLevel:
		a.entry.Logger.SetLevel(logrus.FatalLevel)
	default:
		a.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

func (a *Adapter) GetLevel() logger.Level {
	switch a.entry.Logger.GetLevel() {
	case logrus.TraceLevel:
		return logger.TraceLevel
	case logrus.DebugLevel:
		return logger.DebugLevel
	case logrus.WarnLevel:
		return logger.WarnLevel
	case logrus.ErrorLevel:
		return logger.ErrorLevel
	case logrus.FatalLevel, logrus.PanicLevel:
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}
