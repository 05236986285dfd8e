package telegram

import (
	"context"
	"fmt"
	"strings"

	"affiliate-platform/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of the bot API the notifier uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// LeadNotifier posts new demo requests to an admin chat
type LeadNotifier struct {
	bot    sender
	chatID int64
}

// NewLeadNotifier connects to the Bot API with token
func NewLeadNotifier(token string, chatID int64) (*LeadNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &LeadNotifier{bot: bot, chatID: chatID}, nil
}

func (n *LeadNotifier) NotifyNewLead(ctx context.Context, user *models.PendingUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatLead(user))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send lead alert: %w", err)
	}
	return nil
}

// FormatLead renders a demo request as a plain-text alert
func FormatLead(user *models.PendingUser) string {
	var b strings.Builder
	b.WriteString("New demo request\n")
	fmt.Fprintf(&b, "Name: %s\n", user.Name)
	fmt.Fprintf(&b, "Email: %s\n", user.Email)
	fmt.Fprintf(&b, "Country: %s\n", user.Country)
	if user.Telegram != nil {
		fmt.Fprintf(&b, "Telegram: %s\n", *user.Telegram)
	}
	if user.ReferredByCode != nil {
		fmt.Fprintf(&b, "Referral code: %s\n", *user.ReferredByCode)
	}
	return strings.TrimRight(b.String(), "\n")
}
