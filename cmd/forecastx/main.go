package main

import (
	"fmt"
	"os"
	"time"

	"github.com/raykavin/forecastx"
	"github.com/raykavin/forecastx/pkg/advisory"
	"github.com/raykavin/forecastx/pkg/config"
	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/exchange"
	"github.com/raykavin/forecastx/pkg/exchange/binance"
	"github.com/raykavin/forecastx/pkg/forecast"
	"github.com/raykavin/forecastx/pkg/indicator"
	"github.com/raykavin/forecastx/pkg/logger"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var (
	configPath string
	logBackend string
	settings   *config.Settings
	log        logger.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "forecastx",
		Short:             "Stock forecast and indicator dashboard",
		Version:           "1.0.0",
		SilenceUsage:      true,
		PersistentPreRunE: loadSettings,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logBackend, "log-backend", "zerolog", "Logging backend (zerolog or logrus)")

	rootCmd.AddCommand(buildForecastCmd(), buildServeCmd(), buildDownloadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings(_ *cobra.Command, _ []string) error {
	var err error
	if settings, err = config.Load(configPath); err != nil {
		return err
	}

	if log, err = forecastx.NewLogger(settings.Log, logBackend); err != nil {
		return err
	}
	forecastx.DefaultLog = log

	return nil
}

// newFeeder routes CSV tickers to their files, crypto pairs to Binance and
// everything else to Yahoo.
func newFeeder() (core.Feeder, error) {
	router := exchange.NewRouter(log)

	if len(settings.CSV) > 0 {
		feeds := make([]exchange.TickerFeed, 0, len(settings.CSV))
		for _, source := range settings.CSV {
			feeds = append(feeds, exchange.TickerFeed{Ticker: source.Ticker, File: source.File, Timeframe: source.Timeframe})
		}

		csvFeed, err := exchange.NewCSVFeed(feeds...)
		if err != nil {
			return nil, err
		}
		router.Route("csv", csvFeed.Has, csvFeed)
	}

	if settings.Binance.Enabled {
		options := []binance.Option{binance.WithLogger(log)}
		if settings.Binance.BaseURL != "" {
			options = append(options, binance.WithBaseURL(settings.Binance.BaseURL))
		}
		if settings.Binance.APIKey != "" {
			options = append(options, binance.WithCredentials(settings.Binance.APIKey, settings.Binance.SecretKey))
		}
		router.Route("binance", binance.IsPair, binance.New(options...))
	}

	return router.Default(exchange.NewYahoo(exchange.WithYahooURL(settings.Yahoo.BaseURL))), nil
}

func newForecaster() *forecast.Engine {
	return forecast.NewEngine(
		forecast.WithIntervalWidth(settings.IntervalWidth),
		forecast.WithLogger(log),
	)
}

// newBridge builds the advisory bridge with the notifiers enabled in the
// settings. The returned Telegram bot, if any, is not started.
func newBridge(chart advisory.ChartFunc) (*advisory.Bridge, *advisory.Telegram, error) {
	options := []advisory.Option{advisory.WithLogger(log), advisory.WithTimeout(settings.OpenAI.Timeout)}

	var telegram *advisory.Telegram
	if settings.Telegram.Enabled {
		var err error
		telegram, err = advisory.NewTelegram(advisory.TelegramConfig{
			Token: settings.Telegram.Token,
			Users: settings.Telegram.Users,
		}, log, advisory.WithChartCommand(chart))
		if err != nil {
			return nil, nil, err
		}
		options = append(options, advisory.WithNotifier(telegram))
	}

	if settings.Mail.Enabled {
		options = append(options, advisory.WithNotifier(advisory.NewMail(advisory.MailConfig{
			Host:     settings.Mail.Host,
			Port:     settings.Mail.Port,
			From:     settings.Mail.From,
			To:       settings.Mail.To,
			Password: settings.Mail.Password,
		})))
	}

	var advisor core.Advisor
	if settings.OpenAI.APIKey != "" {
		advisor = advisory.NewOpenAI(advisory.OpenAIConfig{
			APIKey:    settings.OpenAI.APIKey,
			BaseURL:   settings.OpenAI.BaseURL,
			Model:     settings.OpenAI.Model,
			MaxTokens: settings.OpenAI.MaxTokens,
		})
	}

	return advisory.NewBridge(advisor, options...), telegram, nil
}

// defaultView is the view described by the settings
func defaultView() (forecastx.View, error) {
	specs, err := indicator.ParseSpecs(settings.Indicators)
	if err != nil {
		return forecastx.View{}, err
	}

	return forecastx.View{
		Horizon:      settings.Horizon,
		Indicators:   specs,
		FullForecast: settings.FullForecast,
	}, nil
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return date, nil
}
