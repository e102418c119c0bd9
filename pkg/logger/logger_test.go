package logger_test

import (
	"bytes"
	"testing"

	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/raykavin/forecastx/pkg/logger/logrus"
	"github.com/raykavin/forecastx/pkg/logger/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	require.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	require.Equal(t, logger.Disabled, logger.ParseLevel("off"))
	require.Equal(t, logger.InfoLevel, logger.ParseLevel("whatever"))
}

func TestZerologAdapter(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	zl, err := zerolog.New(zerolog.Config{Level: "info", JSON: true, Output: buffer})
	require.NoError(t, err)

	log := zerolog.NewAdapter(zl)
	log.WithField("ticker", "AAPL").Info("fetched")
	log.Debug("hidden")

	require.Contains(t, buffer.String(), `"ticker":"AAPL"`)
	require.Contains(t, buffer.String(), "fetched")
	require.NotContains(t, buffer.String(), "hidden")
	require.Equal(t, logger.InfoLevel, log.GetLevel())

	log.SetLevel(logger.DebugLevel)
	require.Equal(t, logger.DebugLevel, log.GetLevel())
}

func TestZerologNew_InvalidLevel(t *testing.T) {
	_, err := zerolog.New(zerolog.Config{Level: "loud"})
	require.Error(t, err)
}

func TestLogrusAdapter(t *testing.T) {
	buffer := bytes.NewBuffer(nil)
	log := logrus.New(buffer, "warn", true)

	log.Info("hidden")
	log.WithField("horizon", 7).Warn("slow fit")

	require.NotContains(t, buffer.String(), "hidden")
	require.Contains(t, buffer.String(), "slow fit")
	require.Contains(t, buffer.String(), `"horizon":7`)
	require.Equal(t, logger.WarnLevel, log.GetLevel())
}
