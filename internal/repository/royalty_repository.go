package repository

import (
	"context"
	"errors"

	"moveregistry-backend/internal/models"

	"gorm.io/gorm"
)

// RoyaltyRepository defines the interface for royalty event data access
type RoyaltyRepository interface {
	// Record inserts an event, ignoring duplicates by transaction signature.
	Record(ctx context.Context, event *models.RoyaltyEvent) (created bool, err error)
	FindByCreator(ctx context.Context, creator string, limit int) ([]*models.RoyaltyEvent, error)
	FindByMint(ctx context.Context, mint string) ([]*models.RoyaltyEvent, error)
	TotalByCreator(ctx context.Context, creator string) (int64, error)
	// SumByCreator totals the raw atomic amounts of a creator's events.
	SumByCreator(ctx context.Context, creator string) (uint64, error)
}

type royaltyRepository struct {
	db *gorm.DB
}

// NewRoyaltyRepository creates a new RoyaltyRepository instance
func NewRoyaltyRepository(db *gorm.DB) RoyaltyRepository {
	return &royaltyRepository{db: db}
}

func (r *royaltyRepository) Record(ctx context.Context, event *models.RoyaltyEvent) (bool, error) {
	var existing models.RoyaltyEvent
	err := r.db.WithContext(ctx).Where("tx_signature = ?", event.TxSignature).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *royaltyRepository) FindByCreator(ctx context.Context, creator string, limit int) ([]*models.RoyaltyEvent, error) {
	var events []*models.RoyaltyEvent
	err := r.db.WithContext(ctx).
		Where("creator = ?", creator).
		Order("received_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *royaltyRepository) FindByMint(ctx context.Context, mint string) ([]*models.RoyaltyEvent, error) {
	var events []*models.RoyaltyEvent
	err := r.db.WithContext(ctx).
		Where("mint = ?", mint).
		Order("received_at DESC").
		Find(&events).Error
	return events, err
}

func (r *royaltyRepository) TotalByCreator(ctx context.Context, creator string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoyaltyEvent{}).
		Where("creator = ?", creator).
		Count(&count).Error
	return count, err
}

func (r *royaltyRepository) SumByCreator(ctx context.Context, creator string) (uint64, error) {
	var sum uint64
	err := r.db.WithContext(ctx).
		Model(&models.RoyaltyEvent{}).
		Where("creator = ?", creator).
		Select("COALESCE(SUM(CAST(amount AS NUMERIC)), 0)").
		Scan(&sum).Error
	return sum, err
}
