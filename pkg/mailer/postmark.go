package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkMailer struct {
	client *postmark.Client
	from   string
}

// NewPostmark creates a Postmark-backed Mailer. Tokens and the sender
// address are required so a misconfigured deployment fails at startup
// instead of silently dropping mail.
func NewPostmark(serverToken, accountToken, fromAddress string) (Mailer, error) {
	if serverToken == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	if fromAddress == "" {
		return nil, fmt.Errorf("sender address is required")
	}
	return &postmarkMailer{
		client: postmark.NewClient(serverToken, accountToken),
		from:   fromAddress,
	}, nil
}

func (m *postmarkMailer) Send(ctx context.Context, toAddress, subject, body string) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.from,
		To:       toAddress,
		Subject:  subject,
		TextBody: body,
	})
	if err != nil {
		// Network-level failures are retryable.
		return errors.Join(ErrTransient, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			classifyPostmarkCode(int(resp.ErrorCode)),
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// classifyPostmarkCode maps Postmark API error codes onto the retry
// taxonomy. 300 (invalid email request) and 406 (inactive recipient)
// will never succeed on retry.
func classifyPostmarkCode(code int) error {
	switch code {
	case 300, 406:
		return ErrPermanent
	default:
		return ErrTransient
	}
}
