package domain

import "time"

// NotificationPreference holds per-recipient, per-type channel opt-outs.
// A missing row means both channels enabled (opt-out model).
type NotificationPreference struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	RecipientID  string    `json:"recipient_id" gorm:"uniqueIndex:idx_pref_recipient_type;not null"`
	Type         string    `json:"type" gorm:"uniqueIndex:idx_pref_recipient_type;not null"`
	EmailEnabled bool      `json:"email_enabled"`
	PushEnabled  bool      `json:"push_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ResolveChannel intersects the requested channel with the recipient's
// enabled channels. pref may be nil (no row stored). ChannelNone means
// the caller must not enqueue anything.
func ResolveChannel(pref *NotificationPreference, requested Channel) Channel {
	emailOK := requested.IncludesEmail()
	pushOK := requested.IncludesPush()
	if pref != nil {
		emailOK = emailOK && pref.EmailEnabled
		pushOK = pushOK && pref.PushEnabled
	}

	switch {
	case emailOK && pushOK:
		return ChannelBoth
	case emailOK:
		return ChannelEmail
	case pushOK:
		return ChannelPush
	default:
		return ChannelNone
	}
}
