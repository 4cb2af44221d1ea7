package repository

import (
	"time"

	"kidsnest-backend/internal/notification/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TemplateRepository defines the template-store operations. Templates
// are reference data mutated only through administrative configuration.
type TemplateRepository interface {
	FindActiveByType(notificationType string) (*domain.NotificationTemplate, error)
	Upsert(template *domain.NotificationTemplate) error
	List() ([]domain.NotificationTemplate, error)
}

type gormTemplateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository creates a gorm-backed TemplateRepository.
func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &gormTemplateRepository{db: db}
}

func (r *gormTemplateRepository) FindActiveByType(notificationType string) (*domain.NotificationTemplate, error) {
	var template domain.NotificationTemplate
	err := r.db.Where("type = ? AND active = ?", notificationType, true).First(&template).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &template, nil
}

// Upsert inserts or replaces a template by its type identity.
func (r *gormTemplateRepository) Upsert(template *domain.NotificationTemplate) error {
	if template.ID == "" {
		template.ID = uuid.New().String()
	}
	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "subject_template", "body_template",
			"push_title_template", "push_body_template", "active", "updated_at",
		}),
	}).Create(template).Error
}

func (r *gormTemplateRepository) List() ([]domain.NotificationTemplate, error) {
	var templates []domain.NotificationTemplate
	err := r.db.Order("type ASC").Find(&templates).Error
	return templates, err
}
