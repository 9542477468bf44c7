package mailer

import (
	"context"
	"errors"

	"github.com/2beens/fittrack/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

var ErrNoRecipient = errors.New("email has no recipient")

type Kind string

const (
	KindVerifyEmail   Kind = "verify_email"
	KindResetPassword Kind = "reset_password"
	KindReminder      Kind = "reminder"
)

type Message struct {
	Kind     Kind
	To       string
	Subject  string
	HTMLBody string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// InstrumentedMailer counts sent and failed emails per kind.
type InstrumentedMailer struct {
	next           Mailer
	metricsManager *metrics.Manager
}

func NewInstrumentedMailer(next Mailer, metricsManager *metrics.Manager) *InstrumentedMailer {
	return &InstrumentedMailer{
		next:           next,
		metricsManager: metricsManager,
	}
}

func (m *InstrumentedMailer) Send(ctx context.Context, msg Message) error {
	err := m.next.Send(ctx, msg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metricsManager.CounterEmailsSent.With(prometheus.Labels{
		"kind":   string(msg.Kind),
		"status": status,
	}).Inc()
	return err
}
