package notificator

import (
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/cobia/billing/pkg/logger"
)

const emailSubject = "Cobia subscription receipt"

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost   string
	SMTPPort   int
	SMTPSender string

	SMTPAuth smtp.Auth

	// send is smtp.SendMail outside of tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPUser string, SMTPPassword string, SMTPSender string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:     logger,
		SMTPAuth:   auth,
		SMTPHost:   SMTPHost,
		SMTPPort:   SMTPPort,
		SMTPSender: SMTPSender,
		send:       smtp.SendMail,
	}
}

func (e *EmailNotificator) SendNotification(to, message string) error {
	addr := e.SMTPHost + ":" + strconv.Itoa(e.SMTPPort)
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		e.SMTPSender,
		to,
		emailSubject,
		message,
	)
	if err := e.send(addr, e.SMTPAuth, e.SMTPSender, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	e.logger.Debug("Receipt emailed", "to", to)
	return nil
}
