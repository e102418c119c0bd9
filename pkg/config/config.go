// Package config loads forecastx settings from a YAML file, a .env file and
// FORECASTX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

const (
	DefaultConfigPath = "./forecastx.yaml"
	EnvPrefix         = "FORECASTX"
	DateLayout        = "2006-01-02"
)

// Settings is the full configuration of the dashboard
type Settings struct {
	Ticker        string   `mapstructure:"ticker" default:"AAPL" validate:"required,max=20"`
	Start         string   `mapstructure:"start" validate:"omitempty,datetime=2006-01-02"`
	Lookback      string   `mapstructure:"lookback" default:"365d" validate:"lookback"`
	Horizon       int      `mapstructure:"horizon" default:"7" validate:"min=1,max=30"`
	Indicators    []string `mapstructure:"indicators" default:"[\"SMA20\"]" validate:"dive,oneof=SMA20 EMA20 BOLLINGER20 VWAP"`
	FullForecast  bool     `mapstructure:"full_forecast"`
	IntervalWidth float64  `mapstructure:"interval_width" default:"0.8" validate:"gt=0,lt=1"`

	Log      LogSettings      `mapstructure:"log"`
	Server   ServerSettings   `mapstructure:"server"`
	Yahoo    YahooSettings    `mapstructure:"yahoo"`
	Binance  BinanceSettings  `mapstructure:"binance"`
	CSV      []CSVSource      `mapstructure:"csv" validate:"dive"`
	OpenAI   OpenAISettings   `mapstructure:"openai"`
	Telegram TelegramSettings `mapstructure:"telegram"`
	Mail     MailSettings     `mapstructure:"mail"`
}

type LogSettings struct {
	Level      string `mapstructure:"level" default:"info" validate:"oneof=trace debug info warn error fatal disabled"`
	TimeFormat string `mapstructure:"time_format" default:"2006-01-02 15:04:05"`
	Colored    bool   `mapstructure:"colored" default:"true"`
	JSON       bool   `mapstructure:"json"`
}

type ServerSettings struct {
	Addr         string        `mapstructure:"addr" default:":8080" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"90s"`
}

type YahooSettings struct {
	BaseURL string `mapstructure:"base_url" default:"https://query1.finance.yahoo.com" validate:"url"`
}

type BinanceSettings struct {
	Enabled   bool   `mapstructure:"enabled" default:"true"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
}

// CSVSource serves a ticker from a local file instead of a remote API
type CSVSource struct {
	Ticker    string `mapstructure:"ticker" validate:"required"`
	File      string `mapstructure:"file" validate:"required"`
	Timeframe string `mapstructure:"timeframe" default:"1d"`
}

type OpenAISettings struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model     string        `mapstructure:"model" default:"gpt-4o"`
	MaxTokens int           `mapstructure:"max_tokens" default:"800" validate:"min=1"`
	Timeout   time.Duration `mapstructure:"timeout" default:"60s"`
}

type TelegramSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
	Users   []int  `mapstructure:"users"`
}

type MailSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port" default:"587"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
	To       string `mapstructure:"to" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lookback", func(fl validator.FieldLevel) bool {
		d, err := str2duration.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Default returns the settings used when nothing is configured
func Default() *Settings {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		panic(err)
	}
	return s
}

// Load reads .env (when present), then path (when present), then the
// environment. Missing files are not an error; invalid values are.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(Settings{}), "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	settings := Default()
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// csv entries come from the file, so their defaults are applied here
	for i := range settings.CSV {
		if err := defaults.Set(&settings.CSV[i]); err != nil {
			return nil, err
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// bindEnvs registers every leaf key so AutomaticEnv also feeds Unmarshal
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, field.Type, key)
			continue
		}
		if field.Type.Kind() == reflect.Slice && field.Type.Elem().Kind() == reflect.Struct {
			continue
		}

		_ = v.BindEnv(key)
	}
}

// Validate checks every field and reports all failures at once
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, errorMessage(fe))
	}

	return fmt.Errorf("invalid settings: %s", strings.Join(messages, "; "))
}

func errorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "lt":
		return fmt.Sprintf("%s is out of range", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date like %s", field, fe.Param())
	case "lookback":
		return fmt.Sprintf("%s must be a duration like 365d or 26w", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

// StartDate resolves the first day to fetch: Start when set, otherwise now
// minus Lookback.
func (s *Settings) StartDate(now time.Time) (time.Time, error) {
	if s.Start != "" {
		return time.Parse(DateLayout, s.Start)
	}

	lookback, err := str2duration.ParseDuration(s.Lookback)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid lookback %q: %w", s.Lookback, err)
	}

	start := now.Add(-lookback).UTC()
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC), nil
}
