package domain

import "time"

// Role of a platform account.
type Role string

const (
	RoleGuardian Role = "guardian"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Guardian is a notification recipient: a parent or staff member known
// to the identity layer. The notification core only reads these rows;
// account management lives elsewhere.
type Guardian struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"uniqueIndex"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role" gorm:"default:guardian"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
