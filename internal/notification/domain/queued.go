package domain

import (
	"fmt"
	"time"
)

// Status is the delivery state of a queued notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// legalTransitions encodes the only moves the queue allows. Status only
// advances forward except processing → pending on a retryable failure.
var legalTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusSent, StatusFailed, StatusPending},
	StatusFailed:     {StatusPending}, // manual requeue only
}

// CanTransition reports whether moving to the given status is legal.
func (s Status) CanTransition(to Status) bool {
	for _, t := range legalTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// ErrIllegalTransition is returned when a status move violates the
// queue lifecycle, e.g. sent → pending.
type ErrIllegalTransition struct {
	From, To Status
}

func (e ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// QueuedNotification is the durable record of one notification request.
type QueuedNotification struct {
	ID                 string            `json:"id" gorm:"primaryKey"`
	RecipientID        string            `json:"recipient_id" gorm:"index;not null"`
	Type               string            `json:"type" gorm:"index;not null"`
	RenderedTitle      string            `json:"rendered_title"`
	RenderedBody       string            `json:"rendered_body"`
	RenderedPushTitle  string            `json:"rendered_push_title"`
	RenderedPushBody   string            `json:"rendered_push_body"`
	DataPayload        map[string]string `json:"data_payload" gorm:"serializer:json"`
	Channel            Channel           `json:"channel" gorm:"not null"`
	Status             Status            `json:"status" gorm:"index;default:pending"`
	Attempts           int               `json:"attempts" gorm:"default:0"`
	NextAttemptAt      time.Time         `json:"next_attempt_at" gorm:"index"`
	LastAttemptAt      *time.Time        `json:"last_attempt_at,omitempty"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	ReadAt             *time.Time        `json:"read_at,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	CreatedAt          time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Claim transitions the row from pending to processing on behalf of a
// dispatcher. Rows are claimed exactly once per attempt.
func (n *QueuedNotification) Claim(now time.Time) error {
	if !n.Status.CanTransition(StatusProcessing) {
		return ErrIllegalTransition{From: n.Status, To: StatusProcessing}
	}
	n.Status = StatusProcessing
	n.LastAttemptAt = &now
	return nil
}

// ApplyOutcome resolves a processing row according to the dispatcher's
// verdict. Retryable failures increment attempts and reschedule with
// exponential backoff until maxAttempts is exhausted, after which the
// row is terminally failed.
func (n *QueuedNotification) ApplyOutcome(outcome DeliveryOutcome, now time.Time, maxAttempts int, baseDelay time.Duration) error {
	if n.Status != StatusProcessing {
		to := StatusSent
		switch outcome.Kind {
		case OutcomeRetryableFailure:
			to = StatusPending
		case OutcomeTerminalFailure:
			to = StatusFailed
		}
		return ErrIllegalTransition{From: n.Status, To: to}
	}

	switch outcome.Kind {
	case OutcomeSent:
		n.Status = StatusSent
		n.SentAt = &now
		n.ErrorMessage = ""
	case OutcomeRetryableFailure:
		n.Attempts++
		n.ErrorMessage = outcome.Reason
		if n.Attempts < maxAttempts {
			n.Status = StatusPending
			n.NextAttemptAt = now.Add(BackoffDelay(baseDelay, n.Attempts))
		} else {
			n.Status = StatusFailed
		}
	case OutcomeTerminalFailure:
		n.Attempts++
		n.Status = StatusFailed
		n.ErrorMessage = outcome.Reason
	default:
		return fmt.Errorf("unknown outcome kind %q", outcome.Kind)
	}
	return nil
}

// MarkRead records the recipient's first acknowledgment. Idempotent and
// independent of delivery status.
func (n *QueuedNotification) MarkRead(now time.Time) {
	if n.ReadAt == nil {
		n.ReadAt = &now
	}
}

// Requeue resets a terminally failed row for another delivery cycle.
// Only failed rows can be requeued, and only by an administrator.
func (n *QueuedNotification) Requeue(now time.Time) error {
	if !n.Status.CanTransition(StatusPending) {
		return ErrIllegalTransition{From: n.Status, To: StatusPending}
	}
	n.Status = StatusPending
	n.Attempts = 0
	n.ErrorMessage = ""
	n.NextAttemptAt = now
	return nil
}

// BackoffDelay computes the retry delay after the given attempt count:
// baseDelay × 2^(attempts-1).
func BackoffDelay(baseDelay time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		return baseDelay
	}
	return baseDelay << (attempts - 1)
}
