package mailer

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogMailer only logs the emails, used in development when no SMTP host is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	log.WithFields(log.Fields{
		"kind":    msg.Kind,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Infof("email not sent (log mailer):\n%s", msg.HTMLBody)
	return nil
}
