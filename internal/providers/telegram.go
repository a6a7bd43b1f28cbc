package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"field-alerts/internal/logging"
	"field-alerts/internal/utils"
)

// TelegramConfig holds the bot token and the chat that receives alerts.
type TelegramConfig struct {
	BotToken   string
	ChatID     int64
	RatePerSec int
}

// MessageSender is the part of the Telegram bot API the sink uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) error
}

type botSender struct {
	token string
}

func (b botSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) error {
	tb, err := bot.New(b.token)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	_, err = tb.SendMessage(ctx, params)
	return err
}

// TelegramSink forwards alerts to a Telegram chat.
type TelegramSink struct {
	chatID  int64
	sender  MessageSender
	limiter *rate.Limiter
	logger  *logging.Logger
	retries int
	backoff time.Duration
}

// NewTelegramSink returns a sink that talks to the Telegram bot API.
func NewTelegramSink(cfg TelegramConfig, logger *logging.Logger) (*TelegramSink, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("missing Telegram bot token")
	}
	return newTelegramSink(cfg, botSender{token: cfg.BotToken}, logger)
}

func newTelegramSink(cfg TelegramConfig, sender MessageSender, logger *logging.Logger) (*TelegramSink, error) {
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("missing Telegram chat_id")
	}
	if cfg.RatePerSec < 1 {
		cfg.RatePerSec = 1
	}
	return &TelegramSink{
		chatID:  cfg.ChatID,
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		logger:  logger.With("sink", "telegram"),
		retries: 3,
		backoff: time.Second,
	}, nil
}

func (s *TelegramSink) Notify(ctx context.Context, title, body string, _ time.Duration) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	params := &bot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      fmt.Sprintf("*%s*\n%s", title, body),
		ParseMode: "Markdown",
	}
	return utils.Retry(ctx, s.logger, s.retries, s.backoff, func() error {
		if err := s.sender.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", s.chatID, err)
		}
		return nil
	})
}
