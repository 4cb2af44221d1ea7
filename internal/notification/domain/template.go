package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownTemplate is returned when a producer enqueues with a type
// that has no active template. A producer bug, surfaced immediately and
// never retried.
var ErrUnknownTemplate = errors.New("unknown notification template type")

// Well-known template types created by the platform seed data. Producers
// may register additional types through the admin API.
const (
	TypeCheckIn      = "checkIn"
	TypeIncident     = "incident"
	TypeMeal         = "meal"
	TypeNap          = "nap"
	TypePhoto        = "photo"
	TypeAnnouncement = "announcement"
)

// NotificationTemplate is a named message template. The type is the
// immutable identity once queued rows reference it; edits only change
// rendering for future sends.
type NotificationTemplate struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	Type              string    `json:"type" gorm:"uniqueIndex;not null"`
	DisplayName       string    `json:"display_name"`
	SubjectTemplate   string    `json:"subject_template"`
	BodyTemplate      string    `json:"body_template"`
	PushTitleTemplate string    `json:"push_title_template"`
	PushBodyTemplate  string    `json:"push_body_template"`
	Active            bool      `json:"active" gorm:"default:true"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Rendered is the outcome of placeholder substitution for one message.
type Rendered struct {
	Subject   string
	Body      string
	PushTitle string
	PushBody  string
}

// Render substitutes {{name}} tokens in all template strings. Unresolved
// tokens are left literally in place so malformed producer calls degrade
// visibly instead of erroring. Push copy falls back to subject/body when
// the shorter templates are absent.
func (t *NotificationTemplate) Render(placeholders map[string]string) Rendered {
	r := Rendered{
		Subject:   substitute(t.SubjectTemplate, placeholders),
		Body:      substitute(t.BodyTemplate, placeholders),
		PushTitle: substitute(t.PushTitleTemplate, placeholders),
		PushBody:  substitute(t.PushBodyTemplate, placeholders),
	}
	if t.PushTitleTemplate == "" {
		r.PushTitle = r.Subject
	}
	if t.PushBodyTemplate == "" {
		r.PushBody = r.Body
	}
	return r
}

func substitute(template string, placeholders map[string]string) string {
	if template == "" || len(placeholders) == 0 {
		return template
	}
	out := template
	for name, value := range placeholders {
		out = strings.ReplaceAll(out, "{{"+name+"}}", value)
	}
	return out
}
