package mailer

import (
	"context"

	"go.uber.org/zap"
)

type devMailer struct {
	log *zap.Logger
}

// NewDev returns a Mailer that logs messages instead of sending them.
// Used when no Postmark token is configured, e.g. local development.
func NewDev(log *zap.Logger) Mailer {
	return &devMailer{log: log}
}

func (m *devMailer) Send(_ context.Context, toAddress, subject, body string) error {
	m.log.Info("dev mailer: email not sent",
		zap.String("to", toAddress),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
