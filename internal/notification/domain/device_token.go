package domain

import "time"

// Platform identifies the kind of device a push token belongs to.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// Valid reports whether the platform is one of the supported values.
func (p Platform) Valid() bool {
	return p == PlatformIOS || p == PlatformAndroid || p == PlatformWeb
}

// DeviceToken is a push-capable device registration. A recipient may own
// many tokens; a token belongs to exactly one recipient at a time.
// Tokens are deactivated, never deleted, when FCM reports them invalid.
type DeviceToken struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RecipientID string    `json:"recipient_id" gorm:"index;not null"`
	Token       string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	Platform    Platform  `json:"platform" gorm:"not null"`
	DeviceName  string    `json:"device_name"`
	Active      bool      `json:"active" gorm:"default:true"`
	LastUsedAt  time.Time `json:"last_used_at" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
