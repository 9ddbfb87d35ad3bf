// Package notifier pushes operational alerts (e.g. a provider's circuit
// opening) to out-of-band channels.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"lyricsync-go/logcolors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultNtfyServer = "https://ntfy.sh"

	sendTimeout = 10 * time.Second
)

// Notifier interface for different notification methods
type Notifier interface {
	Name() string
	Send(ctx context.Context, subject, message string) error
}

var httpClient = &http.Client{Timeout: sendTimeout}

func post(ctx context.Context, req *http.Request, channel string) error {
	resp, err := httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send %s notification: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

// =============================================================================
// NTFY.SH NOTIFIER
// =============================================================================

type NtfyNotifier struct {
	Topic  string
	Server string // Default: https://ntfy.sh
}

func (n *NtfyNotifier) Name() string { return "ntfy" }

func (n *NtfyNotifier) Send(ctx context.Context, subject, message string) error {
	server := strings.TrimRight(n.Server, "/")
	if server == "" {
		server = DefaultNtfyServer
	}

	req, err := http.NewRequest(http.MethodPost, server+"/"+n.Topic, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Title", subject)
	req.Header.Set("Priority", "high")
	req.Header.Set("Tags", "warning")

	if err := post(ctx, req, "ntfy"); err != nil {
		return err
	}
	log.Infof("%s Ntfy notification sent to topic %s", logcolors.LogNotifier, n.Topic)
	return nil
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

type TelegramNotifier struct {
	BotToken    string
	ChatID      int64
	APIEndpoint string // Default: tgbotapi.APIEndpoint

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// client connects on first use, NewBotAPI calls getMe
func (t *TelegramNotifier) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}

	endpoint := t.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.BotToken, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Debugf("%s Telegram bot initialized as %s", logcolors.LogNotifier, bot.Self.UserName)
	t.bot = bot
	return bot, nil
}

func (t *TelegramNotifier) Send(ctx context.Context, subject, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bot, err := t.client()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.ChatID, fmt.Sprintf("*%s*\n\n%s", subject, message))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}

	log.Infof("%s Telegram notification sent to chat %d", logcolors.LogNotifier, t.ChatID)
	return nil
}
