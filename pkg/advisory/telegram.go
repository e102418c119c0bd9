package advisory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raykavin/forecastx/pkg/core"
	"github.com/raykavin/forecastx/pkg/logger"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Telegram limits photo captions to 1024 characters
const captionLimit = 1024

// TelegramConfig lists the bot token and the users allowed to talk to it
type TelegramConfig struct {
	Token string
	Users []int
}

// ChartFunc renders the chart of ticker and returns it with a short caption
type ChartFunc func(ctx context.Context, ticker string) (image []byte, caption string, err error)

// Telegram shares advisories with a fixed list of users and, when a ChartFunc
// is set, answers /chart TICKER with a freshly rendered chart.
type Telegram struct {
	client  *tb.Bot
	users   []int
	onChart ChartFunc
	log     logger.Logger
}

var _ core.Notifier = (*Telegram)(nil)

// TelegramOption configures a Telegram notifier
type TelegramOption func(*Telegram)

func WithChartCommand(fn ChartFunc) TelegramOption {
	return func(t *Telegram) {
		t.onChart = fn
	}
}

func NewTelegram(cfg TelegramConfig, log logger.Logger, options ...TelegramOption) (*Telegram, error) {
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	// only configured users get through
	auth := tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			return false
		}
		if slices.Contains(cfg.Users, int(u.Message.Sender.ID)) {
			return true
		}
		log.WithField("user", u.Message.Sender.ID).Warn("unauthorized telegram user")
		return false
	})

	client, err := tb.NewBot(tb.Settings{
		Token:  cfg.Token,
		Poller: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Telegram{
		client: client,
		users:  cfg.Users,
		log:    log,
	}

	for _, option := range options {
		option(bot)
	}

	client.Handle("/help", bot.helpHandle)
	if bot.onChart != nil {
		client.Handle("/chart", bot.chartHandle)
	}

	return bot, nil
}

// Start polls for commands in the background
func (t *Telegram) Start() {
	go t.client.Start()
}

func (t *Telegram) Stop() {
	t.client.Stop()
}

// NotifyAdvisory implements core.Notifier. The chart goes out as a photo with
// the start of the advisory as caption; any remainder follows as text.
func (t *Telegram) NotifyAdvisory(_ context.Context, ticker string, image []byte, advisory string) error {
	caption, rest := splitCaption(fmt.Sprintf("%s\n\n%s", ticker, advisory), captionLimit)

	var errs []error
	for _, user := range t.users {
		to := &tb.User{ID: int64(user)}

		photo := &tb.Photo{File: tb.FromReader(bytes.NewReader(image)), Caption: caption}
		if _, err := t.client.Send(to, photo); err != nil {
			errs = append(errs, fmt.Errorf("send chart to %d: %w", user, err))
			continue
		}

		if rest != "" {
			if _, err := t.client.Send(to, rest); err != nil {
				errs = append(errs, fmt.Errorf("send advisory to %d: %w", user, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (t *Telegram) helpHandle(m *tb.Message) {
	text := "/help - Display help instructions"
	if t.onChart != nil {
		text += "\n/chart TICKER - Chart and forecast of a ticker"
	}
	t.reply(m.Sender, text)
}

func (t *Telegram) chartHandle(m *tb.Message) {
	ticker := strings.ToUpper(strings.TrimSpace(m.Payload))
	if ticker == "" {
		t.reply(m.Sender, "Usage: /chart TICKER")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	image, caption, err := t.onChart(ctx, ticker)
	if err != nil {
		t.reply(m.Sender, err.Error())
		return
	}

	caption, _ = splitCaption(caption, captionLimit)
	photo := &tb.Photo{File: tb.FromReader(bytes.NewReader(image)), Caption: caption}
	if _, err := t.client.Send(m.Sender, photo); err != nil {
		t.log.WithError(err).Error("failed to send chart")
	}
}

func (t *Telegram) reply(to *tb.User, text string) {
	if _, err := t.client.Send(to, text); err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// splitCaption cuts text to at most limit characters, preferring a line or
// word boundary, and returns the cut part and what is left.
func splitCaption(text string, limit int) (string, string) {
	if utf8.RuneCountInString(text) <= limit {
		return text, ""
	}

	cut, runes := len(text), 0
	for i := range text {
		if runes == limit {
			cut = i
			break
		}
		runes++
	}

	head := text[:cut]
	if i := strings.LastIndexAny(head, "\n "); i > 0 {
		head = head[:i]
	}

	return strings.TrimSpace(head), strings.TrimSpace(text[len(head):])
}
