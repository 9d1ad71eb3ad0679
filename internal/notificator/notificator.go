package notificator

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/logger"
)

// sender delivers one message to one recipient on one channel.
type sender interface {
	SendNotification(to, message string) error
}

// Notificator fans a receipt out to every channel the user has configured.
// Channels left nil are skipped.
type Notificator struct {
	logger *logger.Logger
	users  models.UserRepository

	TelegramNotificator sender
	EmailNotificator    sender
}

func NewNotificator(logger *logger.Logger, users models.UserRepository, telegram, email sender) *Notificator {
	return &Notificator{logger: logger, users: users, TelegramNotificator: telegram, EmailNotificator: email}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func() error, channel string, userID int64) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Notification channel panicked",
				"channel", channel,
				"user_id", userID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	if err := fn(); err != nil {
		n.logger.Error("Failed to send notification", "channel", channel, "user_id", userID, "error", err)
	}
}

// SendNotification is called on its own goroutine after a payment commits,
// so it blocks on delivery and only logs failures.
func (n *Notificator) SendNotification(notification *models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := n.users.GetByID(ctx, notification.UserID)
	if err != nil {
		n.logger.Error("Failed to load notification recipient", "user_id", notification.UserID, "error", err)
		return
	}

	message := notification.String()
	if n.TelegramNotificator != nil && user.TelegramChatID != "" {
		chatID := user.TelegramChatID
		n.safeCall(func() error { return n.TelegramNotificator.SendNotification(chatID, message) }, "telegram", user.ID)
	}
	if n.EmailNotificator != nil && user.Email != "" {
		email := user.Email
		n.safeCall(func() error { return n.EmailNotificator.SendNotification(email, message) }, "email", user.ID)
	}
}
