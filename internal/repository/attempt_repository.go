package repository

import (
	"context"

	"moveregistry-backend/internal/models"

	"gorm.io/gorm"
)

// AttemptRepository defines the interface for mint attempt data access
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.MintAttempt) error
	GetByID(ctx context.Context, id string) (*models.MintAttempt, error)
	Update(ctx context.Context, attempt *models.MintAttempt) error
	FindByCreator(ctx context.Context, creator string, limit int) ([]*models.MintAttempt, error)
	FindUnfinished(ctx context.Context) ([]*models.MintAttempt, error)
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository creates a new AttemptRepository instance
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.MintAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) GetByID(ctx context.Context, id string) (*models.MintAttempt, error) {
	var attempt models.MintAttempt
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.MintAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *attemptRepository) FindByCreator(ctx context.Context, creator string, limit int) ([]*models.MintAttempt, error) {
	var attempts []*models.MintAttempt
	err := r.db.WithContext(ctx).
		Where("creator = ?", creator).
		Order("created_at DESC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// FindUnfinished lists attempts whose payment verification is still pending,
// for the admin retry view.
func (r *attemptRepository) FindUnfinished(ctx context.Context) ([]*models.MintAttempt, error) {
	var attempts []*models.MintAttempt
	err := r.db.WithContext(ctx).
		Where("state IN ?", []models.MintAttemptState{
			models.StateVerificationPending,
			models.StateTokenPaymentFlow,
			models.StateNativeTransferFlow,
		}).
		Order("created_at DESC").
		Find(&attempts).Error
	return attempts, err
}
