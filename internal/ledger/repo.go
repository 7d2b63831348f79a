package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
)

// Repository exposes persistence helpers for inventory days and the change
// log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetDay(ctx context.Context, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error)
	GetRange(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.InventoryDay, error)
	CreateDays(ctx context.Context, days []models.InventoryDay) error
	// UpdateDayVersioned writes the day only if the stored version still
	// matches expectedVersion. Returns false when another writer won.
	UpdateDayVersioned(ctx context.Context, day *models.InventoryDay, expectedVersion int64) (bool, error)

	AppendChange(ctx context.Context, entry *models.ChangeLogEntry) error
	ListChanges(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChangeLogEntry, error)
	DeleteChangesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetDay(ctx context.Context, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error) {
	var day models.InventoryDay
	err := r.db.WithContext(ctx).
		First(&day, "room_type_id = ? AND date = ?", roomTypeID, date).Error
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *repositoryImpl) GetRange(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.InventoryDay, error) {
	var days []models.InventoryDay
	err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND date >= ? AND date < ?", roomTypeID, from, to).
		Order("date ASC").
		Find(&days).Error
	return days, err
}

func (r *repositoryImpl) CreateDays(ctx context.Context, days []models.InventoryDay) error {
	if len(days) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(days, 200).Error
}

func (r *repositoryImpl) UpdateDayVersioned(ctx context.Context, day *models.InventoryDay, expectedVersion int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryDay{}).
		Where("room_type_id = ? AND date = ? AND version = ?", day.RoomTypeID, day.Date, expectedVersion).
		Updates(map[string]any{
			"available_units":  day.AvailableUnits,
			"rate":             day.Rate,
			"is_open":          day.IsOpen,
			"version":          day.Version,
			"last_modified_by": day.LastModifiedBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) AppendChange(ctx context.Context, entry *models.ChangeLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) ListChanges(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChangeLogEntry, error) {
	var entries []models.ChangeLogEntry
	err := r.db.WithContext(ctx).
		Where("room_type_id = ?", roomTypeID).
		Order("seq ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repositoryImpl) DeleteChangesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.ChangeLogEntry{})
	return result.RowsAffected, result.Error
}
