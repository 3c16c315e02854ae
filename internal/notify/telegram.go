package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/domain"
)

// ContactLookup resolves how to reach a diver. repo.DiverRepo satisfies it.
type ContactLookup interface {
	GetContact(ctx context.Context, diverID uuid.UUID) (domain.DiverContact, error)
}

// botAPI is the part of *tgbotapi.BotAPI used here.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers notifications to divers who linked a Telegram chat.
// Divers without a chat are skipped silently.
type TelegramSender struct {
	bot      botAPI
	contacts ContactLookup
	logger   *slog.Logger
}

// NewTelegramSender connects to the Bot API with token.
func NewTelegramSender(token string, contacts ContactLookup, logger *slog.Logger) (*TelegramSender, error) {
	if token == "" {
		return nil, errors.New("notify.NewTelegramSender: empty bot token")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegramSender: %w", err)
	}
	return newTelegramSender(bot, contacts, logger), nil
}

func newTelegramSender(bot botAPI, contacts ContactLookup, logger *slog.Logger) *TelegramSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramSender{bot: bot, contacts: contacts, logger: logger}
}

// Send implements Sender.
func (t *TelegramSender) Send(ctx context.Context, n domain.Notification) error {
	contact, err := t.contacts.GetContact(ctx, n.DiverID)
	if err != nil {
		return fmt.Errorf("notify.TelegramSender.Send: %w", err)
	}
	if contact.TelegramChatID == nil {
		t.logger.DebugContext(ctx, "telegram notification skipped, no chat", "diver_id", n.DiverID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify.TelegramSender.Send: %w", err)
	}

	msg := tgbotapi.NewMessage(*contact.TelegramChatID, Text(n))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("notify.TelegramSender.Send: chat %d: %w", *contact.TelegramChatID, err)
	}
	return nil
}
