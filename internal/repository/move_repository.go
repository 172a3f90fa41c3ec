// Package repository provides data access interfaces and implementations
package repository

import (
	"context"

	"moveregistry-backend/internal/models"

	"gorm.io/gorm"
)

// MoveRepository defines the interface for minted move data access
type MoveRepository interface {
	Create(ctx context.Context, move *models.MintedMove) error
	GetByMint(ctx context.Context, mint string) (*models.MintedMove, error)
	Update(ctx context.Context, move *models.MintedMove) error

	FindByCreator(ctx context.Context, creator string) ([]*models.MintedMove, error)
	List(ctx context.Context, page, pageSize int) ([]*models.MintedMove, int64, error)
	MarkVerified(ctx context.Context, mint, verifySignature, settlementRef string) error
	SetPayment(ctx context.Context, mint string, path models.PaymentPath, paymentSignature string) error
}

type moveRepository struct {
	db *gorm.DB
}

// NewMoveRepository creates a new MoveRepository instance
func NewMoveRepository(db *gorm.DB) MoveRepository {
	return &moveRepository{db: db}
}

func (r *moveRepository) Create(ctx context.Context, move *models.MintedMove) error {
	return r.db.WithContext(ctx).Create(move).Error
}

func (r *moveRepository) GetByMint(ctx context.Context, mint string) (*models.MintedMove, error) {
	var move models.MintedMove
	err := r.db.WithContext(ctx).Where("mint = ?", mint).First(&move).Error
	if err != nil {
		return nil, err
	}
	return &move, nil
}

func (r *moveRepository) Update(ctx context.Context, move *models.MintedMove) error {
	return r.db.WithContext(ctx).Save(move).Error
}

func (r *moveRepository) FindByCreator(ctx context.Context, creator string) ([]*models.MintedMove, error) {
	var moves []*models.MintedMove
	err := r.db.WithContext(ctx).
		Where("creator = ?", creator).
		Order("created_at DESC").
		Find(&moves).Error
	return moves, err
}

func (r *moveRepository) List(ctx context.Context, page, pageSize int) ([]*models.MintedMove, int64, error) {
	var moves []*models.MintedMove
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.MintedMove{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&moves).Error

	return moves, total, err
}

func (r *moveRepository) MarkVerified(ctx context.Context, mint, verifySignature, settlementRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.MintedMove{}).
		Where("mint = ?", mint).
		Updates(map[string]interface{}{
			"verified":         true,
			"verify_signature": verifySignature,
			"settlement_ref":   settlementRef,
		}).Error
}

func (r *moveRepository) SetPayment(ctx context.Context, mint string, path models.PaymentPath, paymentSignature string) error {
	return r.db.WithContext(ctx).
		Model(&models.MintedMove{}).
		Where("mint = ?", mint).
		Updates(map[string]interface{}{
			"payment_path":      path,
			"payment_signature": paymentSignature,
		}).Error
}
