package repository

import (
	"time"

	"kidsnest-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferenceRepository stores per-recipient channel opt-outs. A missing
// row means both channels enabled.
type PreferenceRepository interface {
	FindByRecipientAndType(recipientID, notificationType string) (*domain.NotificationPreference, error)
	Upsert(recipientID, notificationType string, emailEnabled, pushEnabled bool) error
}

type gormPreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a gorm-backed PreferenceRepository.
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &gormPreferenceRepository{db: db}
}

func (r *gormPreferenceRepository) FindByRecipientAndType(recipientID, notificationType string) (*domain.NotificationPreference, error) {
	var pref domain.NotificationPreference
	err := r.db.Where("recipient_id = ? AND type = ?", recipientID, notificationType).First(&pref).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

func (r *gormPreferenceRepository) Upsert(recipientID, notificationType string, emailEnabled, pushEnabled bool) error {
	now := time.Now()
	pref := &domain.NotificationPreference{
		ID:           uuid.New().String(),
		RecipientID:  recipientID,
		Type:         notificationType,
		EmailEnabled: emailEnabled,
		PushEnabled:  pushEnabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"email_enabled", "push_enabled", "updated_at"}),
	}).Create(pref).Error
}
