package scheduler

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// DeadLetterRepository persists tasks that exhausted their retry budget.
type DeadLetterRepository interface {
	WithTx(tx *gorm.DB) DeadLetterRepository
	Create(ctx context.Context, letter *models.SyncDeadLetter) error
	List(ctx context.Context, channel *enums.Channel, limit int) ([]models.SyncDeadLetter, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type deadLetterRepo struct {
	db *gorm.DB
}

// NewDeadLetterRepository returns a dead-letter repository bound to the
// provided database.
func NewDeadLetterRepository(db *gorm.DB) DeadLetterRepository {
	return &deadLetterRepo{db: db}
}

func (r *deadLetterRepo) WithTx(tx *gorm.DB) DeadLetterRepository {
	if tx == nil {
		return r
	}
	return &deadLetterRepo{db: tx}
}

func (r *deadLetterRepo) Create(ctx context.Context, letter *models.SyncDeadLetter) error {
	if letter.ID == uuid.Nil {
		letter.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(letter).Error
}

func (r *deadLetterRepo) List(ctx context.Context, channel *enums.Channel, limit int) ([]models.SyncDeadLetter, error) {
	query := r.db.WithContext(ctx).Order("failed_at DESC")
	if channel != nil {
		query = query.Where("channel = ?", *channel)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var letters []models.SyncDeadLetter
	err := query.Find(&letters).Error
	return letters, err
}

func (r *deadLetterRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.SyncDeadLetter{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
