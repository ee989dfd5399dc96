// Package telegram delivers rendered reports through the Telegram Bot API
// with bounded retry on transient failures.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Client sends messages to a single chat.
type Client struct {
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	// send is overridable in tests.
	send func(msg tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewClient creates a Telegram client for the given bot token and chat.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		send:           bot.Send,
	}, nil
}

// Send delivers a MarkdownV2 message, retrying with linear backoff between
// attempts. The final failure returns immediately, no trailing sleep.
func (c *Client) Send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logrus.WithError(err).WithField("attempt", i+1).Warn("Telegram send failed")
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}
