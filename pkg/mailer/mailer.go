package mailer

import (
	"context"
	"errors"
)

// Sentinel errors used by the dispatcher to decide between retry and
// terminal failure. Implementations wrap them with the provider detail.
var (
	ErrTransient = errors.New("mailer: transient transport error")
	ErrPermanent = errors.New("mailer: permanent delivery rejection")
)

// Mailer is the outbound email capability consumed by the delivery engine.
type Mailer interface {
	Send(ctx context.Context, toAddress, subject, body string) error
}
