package domain

// OutcomeKind tags the result of one delivery attempt.
type OutcomeKind string

const (
	OutcomeSent             OutcomeKind = "sent"
	OutcomeRetryableFailure OutcomeKind = "retryable_failure"
	OutcomeTerminalFailure  OutcomeKind = "terminal_failure"
)

// DeliveryOutcome is the dispatcher's verdict on a claimed row. All
// delivery failures are data, never control-flow signals.
type DeliveryOutcome struct {
	Kind   OutcomeKind
	Reason string
}

// Sent marks a fully successful delivery attempt.
func Sent() DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeSent}
}

// RetryableFailure marks an attempt that should be retried with backoff.
func RetryableFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeRetryableFailure, Reason: reason}
}

// TerminalFailure marks an attempt that must never be retried.
func TerminalFailure(reason string) DeliveryOutcome {
	return DeliveryOutcome{Kind: OutcomeTerminalFailure, Reason: reason}
}
