package repository

import (
	"time"

	"kidsnest-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository owns the DeviceToken lifecycle and is the only
// writer of the active flag.
type DeviceTokenRepository interface {
	Register(recipientID, token string, platform domain.Platform, deviceName string) error
	Deactivate(token string) error
	DeactivateForRecipient(recipientID string) error
	ActiveTokensFor(recipientID string) ([]domain.DeviceToken, error)
}

type gormDeviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a gorm-backed DeviceTokenRepository.
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &gormDeviceTokenRepository{db: db}
}

// Register upserts by the unique token (atomic INSERT ... ON CONFLICT).
// Re-registering an existing token under a new recipient reassigns
// ownership and reactivates it; a device can change hands.
func (r *gormDeviceTokenRepository) Register(recipientID, token string, platform domain.Platform, deviceName string) error {
	now := time.Now()
	deviceToken := &domain.DeviceToken{
		ID:          uuid.New().String(),
		RecipientID: recipientID,
		Token:       token,
		Platform:    platform,
		DeviceName:  deviceName,
		Active:      true,
		LastUsedAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"recipient_id", "platform", "device_name", "active", "last_used_at", "updated_at",
		}),
	}).Create(deviceToken).Error
}

// Deactivate flips the token inactive, preserving history. Idempotent;
// deactivating twice is a no-op.
func (r *gormDeviceTokenRepository) Deactivate(token string) error {
	return r.db.Model(&domain.DeviceToken{}).Where("token = ?", token).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		}).Error
}

// DeactivateForRecipient disables all of a recipient's tokens, e.g. on
// account closure.
func (r *gormDeviceTokenRepository) DeactivateForRecipient(recipientID string) error {
	return r.db.Model(&domain.DeviceToken{}).Where("recipient_id = ?", recipientID).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now(),
		}).Error
}

// ActiveTokensFor returns the recipient's active tokens, most-recently
// used first.
func (r *gormDeviceTokenRepository) ActiveTokensFor(recipientID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	err := r.db.Where("recipient_id = ? AND active = ?", recipientID, true).
		Order("last_used_at DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
