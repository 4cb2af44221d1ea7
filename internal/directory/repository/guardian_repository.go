package repository

import (
	"kidsnest-backend/internal/directory/domain"

	"gorm.io/gorm"
)

// GuardianRepository resolves recipient identifiers to contact details.
type GuardianRepository interface {
	FindByID(id string) (*domain.Guardian, error)
	FindByEmail(email string) (*domain.Guardian, error)
}

type gormGuardianRepository struct {
	db *gorm.DB
}

// NewGuardianRepository creates a gorm-backed GuardianRepository.
func NewGuardianRepository(db *gorm.DB) GuardianRepository {
	return &gormGuardianRepository{db: db}
}

func (r *gormGuardianRepository) FindByID(id string) (*domain.Guardian, error) {
	var guardian domain.Guardian
	err := r.db.Where("id = ?", id).First(&guardian).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &guardian, nil
}

func (r *gormGuardianRepository) FindByEmail(email string) (*domain.Guardian, error) {
	var guardian domain.Guardian
	err := r.db.Where("email = ?", email).First(&guardian).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &guardian, nil
}
