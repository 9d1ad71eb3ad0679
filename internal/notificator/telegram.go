package notificator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/cobia/billing/pkg/logger"
)

const (
	startReply = "Welcome to Cobia. Open your account settings, copy the Telegram link code and send it here as:\n/link <code>"
	linkUsage  = "Usage: /link <code>"
	linkFailed = "This link code is invalid or has expired. Request a new one from your account settings."
	linkOK     = "Done! Subscription receipts will be delivered to this chat."
)

type linkTokenParser interface {
	ParseLinkToken(token string) (int64, error)
}

type chatLinker interface {
	LinkTelegram(ctx context.Context, userID int64, chatID string) error
}

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	tokens linkTokenParser
	linker chatLinker
}

func NewTelegramNotificator(logger *logger.Logger, token string, tokens linkTokenParser, linker chatLinker) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		tokens: tokens,
		linker: linker,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b

	return provider, nil
}

// Start polls for updates until ctx is cancelled.
func (t *TelegramNotificator) Start(ctx context.Context) {
	go t.bot.Start(ctx)
}

func (t *TelegramNotificator) SendNotification(chatID, message string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	if _, err := t.bot.SendMessage(context.Background(), params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil {
		return
	}
	reply := t.handleText(ctx, update.Message.Chat.ID, update.Message.Text)
	if reply == "" {
		return
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: update.Message.Chat.ID, Text: reply}); err != nil {
		t.logger.Error("Failed to answer telegram message", "chat_id", update.Message.Chat.ID, "error", err)
	}
}

// handleText processes one incoming message and returns the reply, if any.
func (t *TelegramNotificator) handleText(ctx context.Context, chatID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "/start":
		return startReply
	case "/link":
		if len(fields) != 2 {
			return linkUsage
		}
		userID, err := t.tokens.ParseLinkToken(fields[1])
		if err != nil {
			t.logger.Debug("Rejected telegram link code", "chat_id", chatID, "error", err)
			return linkFailed
		}
		if err := t.linker.LinkTelegram(ctx, userID, strconv.FormatInt(chatID, 10)); err != nil {
			t.logger.Error("Failed to link telegram chat", "user_id", userID, "error", err)
			return linkFailed
		}
		return linkOK
	}
	return ""
}
