package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	directoryrepo "kidsnest-backend/internal/directory/repository"
	"kidsnest-backend/internal/notification/domain"
	"kidsnest-backend/internal/notification/repository"
	"kidsnest-backend/pkg/fcm"
	"kidsnest-backend/pkg/mailer"

	"go.uber.org/zap"
)

// PushSender is the slice of the push gateway client the dispatcher
// needs: one multicast call per batch of tokens.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]fcm.SendResult, error)
}

// DispatcherConfig holds the delivery-engine knobs. DeliveryTimeout
// bounds the transport calls for one row; a provider that hangs past it
// is treated as a transient failure.
type DispatcherConfig struct {
	BatchSize       int
	Concurrency     int
	Interval        time.Duration
	StaleClaimAfter time.Duration
	DeliveryTimeout time.Duration
	EmailEnabled    bool
	FCMEnabled      bool
}

// Stats summarizes one dispatch run. InvalidTokens accumulates tokens
// the provider reported permanently invalid, for diagnostics.
type Stats struct {
	Recovered     int64
	Claimed       int
	Sent          int
	Retryable     int
	Terminal      int
	InvalidTokens []string
}

// Dispatcher pulls due queue rows in batches and delivers them over the
// email and push legs. Multiple instances may run concurrently; the
// queue's compare-and-set claim keeps their batches disjoint.
type Dispatcher struct {
	queue     repository.QueueRepository
	tokens    repository.DeviceTokenRepository
	directory directoryrepo.GuardianRepository
	mail      mailer.Mailer
	push      PushSender
	cfg       DispatcherConfig
	log       *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewDispatcher wires the delivery engine.
func NewDispatcher(
	queue repository.QueueRepository,
	tokens repository.DeviceTokenRepository,
	directory directoryrepo.GuardianRepository,
	mail mailer.Mailer,
	push PushSender,
	cfg DispatcherConfig,
	log *zap.Logger,
) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	return &Dispatcher{
		queue:     queue,
		tokens:    tokens,
		directory: directory,
		mail:      mail,
		push:      push,
		cfg:       cfg,
		log:       log,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic dispatch loop. The first run happens
// immediately so rows abandoned by a crashed instance are recovered at
// startup rather than one interval later.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		d.runAndLog(ctx)

		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.runAndLog(ctx)
			case <-d.stopChan:
				d.log.Info("dispatcher stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the dispatch loop. Rows claimed by an interrupted run stay
// in processing and are recovered by the stale-claim sweep.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

func (d *Dispatcher) runAndLog(ctx context.Context) {
	stats, err := d.RunOnce(ctx)
	if err != nil {
		d.log.Error("dispatch run failed", zap.Error(err))
		return
	}
	if stats.Claimed > 0 || stats.Recovered > 0 {
		d.log.Info("dispatch run complete",
			zap.Int64("recovered", stats.Recovered),
			zap.Int("claimed", stats.Claimed),
			zap.Int("sent", stats.Sent),
			zap.Int("retryable", stats.Retryable),
			zap.Int("terminal", stats.Terminal),
			zap.Int("invalid_tokens", len(stats.InvalidTokens)),
		)
	}
}

// RunOnce processes one bounded batch: recover stale claims, claim due
// rows, deliver each over a bounded worker pool and record the outcomes.
func (d *Dispatcher) RunOnce(ctx context.Context) (Stats, error) {
	now := time.Now()
	stats := Stats{}

	recovered, err := d.queue.RecoverStale(d.cfg.StaleClaimAfter, now)
	if err != nil {
		return stats, fmt.Errorf("stale claim recovery failed: %w", err)
	}
	stats.Recovered = recovered

	batch, err := d.queue.ClaimBatch(d.cfg.BatchSize, now)
	if err != nil {
		return stats, fmt.Errorf("claim failed: %w", err)
	}
	stats.Claimed = len(batch)
	if len(batch) == 0 {
		return stats, nil
	}

	concurrency := d.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, n := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(n *domain.QueuedNotification) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, invalidTokens := d.deliver(ctx, n)
			if err := d.queue.RecordResult(n.ID, outcome, time.Now()); err != nil {
				d.log.Error("failed to record delivery result",
					zap.String("id", n.ID), zap.Error(err))
			}

			mu.Lock()
			switch outcome.Kind {
			case domain.OutcomeSent:
				stats.Sent++
			case domain.OutcomeRetryableFailure:
				stats.Retryable++
			case domain.OutcomeTerminalFailure:
				stats.Terminal++
			}
			stats.InvalidTokens = append(stats.InvalidTokens, invalidTokens...)
			mu.Unlock()
		}(n)
	}
	wg.Wait()

	return stats, nil
}

// deliver runs every leg the row's channel requests and combines the
// outcomes: the row is sent only if every leg succeeded; a terminal leg
// fails the row outright; otherwise any leg failure means retry.
func (d *Dispatcher) deliver(ctx context.Context, n *domain.QueuedNotification) (domain.DeliveryOutcome, []string) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()

	var legs []domain.DeliveryOutcome
	var invalidTokens []string

	if n.Channel.IncludesEmail() {
		legs = append(legs, d.deliverEmail(ctx, n))
	}
	if n.Channel.IncludesPush() {
		leg, invalid := d.deliverPush(ctx, n)
		legs = append(legs, leg)
		invalidTokens = invalid
	}

	combined := domain.Sent()
	for _, leg := range legs {
		switch leg.Kind {
		case domain.OutcomeTerminalFailure:
			return leg, invalidTokens
		case domain.OutcomeRetryableFailure:
			combined = leg
		}
	}
	return combined, invalidTokens
}

func (d *Dispatcher) deliverEmail(ctx context.Context, n *domain.QueuedNotification) domain.DeliveryOutcome {
	if !d.cfg.EmailEnabled {
		return domain.Sent() // channel globally disabled, leg is a no-op
	}

	guardian, err := d.directory.FindByID(n.RecipientID)
	if err != nil {
		return domain.RetryableFailure(fmt.Sprintf("recipient lookup failed: %v", err))
	}
	if guardian == nil || guardian.Email == "" {
		return domain.TerminalFailure("recipient has no email address on file")
	}

	if err := d.mail.Send(ctx, guardian.Email, n.RenderedTitle, n.RenderedBody); err != nil {
		if errors.Is(err, mailer.ErrPermanent) {
			return domain.TerminalFailure(fmt.Sprintf("email rejected: %v", err))
		}
		return domain.RetryableFailure(fmt.Sprintf("email transport error: %v", err))
	}
	return domain.Sent()
}

func (d *Dispatcher) deliverPush(ctx context.Context, n *domain.QueuedNotification) (domain.DeliveryOutcome, []string) {
	if !d.cfg.FCMEnabled || d.push == nil {
		return domain.Sent(), nil // channel globally disabled, leg is a no-op
	}

	devices, err := d.tokens.ActiveTokensFor(n.RecipientID)
	if err != nil {
		return domain.RetryableFailure(fmt.Sprintf("token lookup failed: %v", err)), nil
	}
	if len(devices) == 0 {
		return domain.Sent(), nil // no devices registered, leg is a no-op
	}

	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}

	results, err := d.push.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: n.RenderedPushTitle,
		Body:  n.RenderedPushBody,
		Data:  n.DataPayload,
	})
	if err != nil {
		return domain.RetryableFailure(fmt.Sprintf("push multicast failed: %v", err)), nil
	}

	var invalidTokens []string
	transient := false
	for _, result := range results {
		switch result.Status {
		case fcm.StatusInvalidToken:
			// Deactivation is a side effect on the registry; it never
			// affects the row's own outcome.
			if err := d.tokens.Deactivate(result.Token); err != nil {
				d.log.Error("failed to deactivate invalid token",
					zap.String("recipient_id", n.RecipientID), zap.Error(err))
			}
			invalidTokens = append(invalidTokens, result.Token)
		case fcm.StatusTransientError:
			transient = true
		}
	}

	if transient {
		return domain.RetryableFailure("push delivery reported transient failures"), invalidTokens
	}
	// All tokens either succeeded or were permanently invalid; a leg
	// with no valid recipients does not trigger retries.
	return domain.Sent(), invalidTokens
}
