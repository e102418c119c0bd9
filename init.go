package forecastx

import (
	"os"
	"strconv"

	"github.com/raykavin/forecastx/pkg/config"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/logrus"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
)

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
	defaultLogBackend    = "zerolog"
)

// Environment variable names
const (
	envLogLevel      = "FORECASTX_LOG_LEVEL"
	envLogTimeFormat = "FORECASTX_LOG_TIME_FORMAT"
	envLogColor      = "FORECASTX_LOG_COLORED"
	envLogJSON       = "FORECASTX_LOG_JSON"
	envLogBackend    = "FORECASTX_LOG_BACKEND"
)

// DefaultLog is the logger used when a component is not given one
var DefaultLog logger.Logger

func init() {
	log, err := initLogger()
	if err != nil {
		panic(err)
	}

	DefaultLog = log
}

// initLogger builds the logger from FORECASTX_LOG_* variables
func initLogger() (logger.Logger, error) {
	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}

	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	return NewLogger(config.LogSettings{
		Level:      getEnvWithDefault(envLogLevel, defaultLogLevel),
		TimeFormat: getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat),
		Colored:    logColored,
		JSON:       logJSON,
	}, getEnvWithDefault(envLogBackend, defaultLogBackend))
}

// NewLogger builds a zerolog (default) or logrus logger writing to stdout
func NewLogger(settings config.LogSettings, backend string) (logger.Logger, error) {
	if backend == "logrus" {
		return logrus.New(os.Stdout, settings.Level, settings.JSON), nil
	}

	log, err := zerolog.New(zerolog.Config{
		Level:          settings.Level,
		DateTimeLayout: settings.TimeFormat,
		Colored:        settings.Colored,
		JSON:           settings.JSON,
	})
	if err != nil {
		return nil, err
	}

	return zerolog.NewAdapter(log), nil
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolEnv(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnvWithDefault(key, defaultValue))
}
