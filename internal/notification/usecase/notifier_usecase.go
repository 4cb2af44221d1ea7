package usecase

import (
	"fmt"
	"time"

	"kidsnest-backend/internal/notification/domain"
	"kidsnest-backend/internal/notification/repository"

	"go.uber.org/zap"
)

// EnqueueResult reports what Enqueue did. Skipped means preference
// filtering left no channel and no row was created; producers must
// treat that as success.
type EnqueueResult struct {
	ID      string
	Skipped bool
}

// NotifierUsecase is the queue API consumed by event producers and the
// client-facing inbox/device endpoints.
type NotifierUsecase interface {
	Enqueue(recipientID, notificationType string, placeholders, data map[string]string, requested domain.Channel) (EnqueueResult, error)
	MarkRead(recipientID, notificationID string) error
	Inbox(recipientID string, limit, offset int) ([]*domain.QueuedNotification, int64, error)

	RegisterDevice(recipientID, token string, platform domain.Platform, deviceName string) error
	UnregisterDevice(token string) error

	SetPreference(recipientID, notificationType string, emailEnabled, pushEnabled bool) error

	UpsertTemplate(template *domain.NotificationTemplate) error
	ListTemplates() ([]domain.NotificationTemplate, error)
	ListFailed(limit, offset int) ([]*domain.QueuedNotification, error)
	Requeue(notificationID string) error
}

type notifierUsecase struct {
	templates   repository.TemplateRepository
	preferences repository.PreferenceRepository
	tokens      repository.DeviceTokenRepository
	queue       repository.QueueRepository
	log         *zap.Logger
}

// NewNotifierUsecase wires the queue API over its repositories.
func NewNotifierUsecase(
	templates repository.TemplateRepository,
	preferences repository.PreferenceRepository,
	tokens repository.DeviceTokenRepository,
	queue repository.QueueRepository,
	log *zap.Logger,
) NotifierUsecase {
	return &notifierUsecase{
		templates:   templates,
		preferences: preferences,
		tokens:      tokens,
		queue:       queue,
		log:         log,
	}
}

// Enqueue renders the template, filters channels through the recipient's
// preferences and creates a pending queue row. When every requested
// channel is opted out it creates nothing and reports Skipped, keeping
// the queue free of rows that could never be delivered.
func (u *notifierUsecase) Enqueue(recipientID, notificationType string, placeholders, data map[string]string, requested domain.Channel) (EnqueueResult, error) {
	if !requested.Valid() {
		return EnqueueResult{}, fmt.Errorf("invalid channel %q", requested)
	}

	template, err := u.templates.FindActiveByType(notificationType)
	if err != nil {
		return EnqueueResult{}, err
	}
	if template == nil {
		return EnqueueResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownTemplate, notificationType)
	}

	pref, err := u.preferences.FindByRecipientAndType(recipientID, notificationType)
	if err != nil {
		return EnqueueResult{}, err
	}
	effective := domain.ResolveChannel(pref, requested)
	if effective == domain.ChannelNone {
		u.log.Debug("notification skipped, all channels opted out",
			zap.String("recipient_id", recipientID),
			zap.String("type", notificationType),
		)
		return EnqueueResult{Skipped: true}, nil
	}

	rendered := template.Render(placeholders)
	n := &domain.QueuedNotification{
		RecipientID:       recipientID,
		Type:              notificationType,
		RenderedTitle:     rendered.Subject,
		RenderedBody:      rendered.Body,
		RenderedPushTitle: rendered.PushTitle,
		RenderedPushBody:  rendered.PushBody,
		DataPayload:       data,
		Channel:           effective,
	}
	if err := u.queue.Create(n); err != nil {
		return EnqueueResult{}, err
	}

	u.log.Info("notification enqueued",
		zap.String("id", n.ID),
		zap.String("recipient_id", recipientID),
		zap.String("type", notificationType),
		zap.String("channel", string(effective)),
	)
	return EnqueueResult{ID: n.ID}, nil
}

// MarkRead records the recipient's acknowledgment. Idempotent and
// independent of delivery status.
func (u *notifierUsecase) MarkRead(recipientID, notificationID string) error {
	n, err := u.queue.FindByID(notificationID)
	if err != nil {
		return err
	}
	if n == nil || n.RecipientID != recipientID {
		return fmt.Errorf("notification not found")
	}
	return u.queue.MarkRead(notificationID, time.Now())
}

func (u *notifierUsecase) Inbox(recipientID string, limit, offset int) ([]*domain.QueuedNotification, int64, error) {
	return u.queue.ListForRecipient(recipientID, limit, offset)
}

func (u *notifierUsecase) RegisterDevice(recipientID, token string, platform domain.Platform, deviceName string) error {
	if token == "" {
		return fmt.Errorf("device token is required")
	}
	if !platform.Valid() {
		return fmt.Errorf("invalid platform %q", platform)
	}
	return u.tokens.Register(recipientID, token, platform, deviceName)
}

func (u *notifierUsecase) UnregisterDevice(token string) error {
	return u.tokens.Deactivate(token)
}

func (u *notifierUsecase) SetPreference(recipientID, notificationType string, emailEnabled, pushEnabled bool) error {
	return u.preferences.Upsert(recipientID, notificationType, emailEnabled, pushEnabled)
}

func (u *notifierUsecase) UpsertTemplate(template *domain.NotificationTemplate) error {
	if template.Type == "" {
		return fmt.Errorf("template type is required")
	}
	return u.templates.Upsert(template)
}

func (u *notifierUsecase) ListTemplates() ([]domain.NotificationTemplate, error) {
	return u.templates.List()
}

func (u *notifierUsecase) ListFailed(limit, offset int) ([]*domain.QueuedNotification, error) {
	return u.queue.ListFailed(limit, offset)
}

func (u *notifierUsecase) Requeue(notificationID string) error {
	return u.queue.Requeue(notificationID, time.Now())
}
