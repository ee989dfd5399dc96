package telegram

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(send func(tgbotapi.Chattable) (tgbotapi.Message, error)) *Client {
	return &Client{
		chatID:         42,
		maxRetries:     3,
		retryDelayBase: 20 * time.Millisecond,
		send:           send,
	}
}

func TestSend_FirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	client := newTestClient(func(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
		attempts++
		m, ok := msg.(tgbotapi.MessageConfig)
		require.True(t, ok)
		assert.Equal(t, int64(42), m.ChatID)
		assert.Equal(t, "MarkdownV2", m.ParseMode)
		return tgbotapi.Message{}, nil
	})

	require.NoError(t, client.Send("hello"))
	assert.Equal(t, 1, attempts)
}

func TestSend_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	client := newTestClient(func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		attempts++
		if attempts < 3 {
			return tgbotapi.Message{}, errors.New("too many requests")
		}
		return tgbotapi.Message{}, nil
	})

	require.NoError(t, client.Send("hello"))
	assert.Equal(t, 3, attempts)
}

func TestSend_ExhaustedRetriesFailFast(t *testing.T) {
	attempts := 0
	client := newTestClient(func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		attempts++
		return tgbotapi.Message{}, errors.New("chat not found")
	})

	start := time.Now()
	err := client.Send("hello")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, 3, attempts)
	// backoff runs between attempts only: 20ms + 40ms, with no sleep after
	// the final failure (which would add another 60ms)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 110*time.Millisecond)
}
