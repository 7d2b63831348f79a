package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	"github.com/davidortega/channelsync-backend/pkg/pagination"
)

// Repository exposes persistence helpers for bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetByExternalID(ctx context.Context, channel enums.Channel, externalID string) (*models.Booking, error)
	Update(ctx context.Context, booking *models.Booking) error
	List(ctx context.Context, params ListParams) ([]models.Booking, error)
	// ListConfirmedOverlapping returns confirmed bookings whose stay
	// intersects [from, to), ordered by created_at then id for the
	// deterministic tie-break.
	ListConfirmedOverlapping(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.Booking, error)
	ListByChannel(ctx context.Context, channel enums.Channel, roomTypeID uuid.UUID) ([]models.Booking, error)
}

// ListParams filters the booking listing. Cursor continues a previous page
// using the (created_at, id) keyset.
type ListParams struct {
	RoomTypeID *uuid.UUID
	Channel    *enums.Channel
	Status     *enums.BookingStatus
	Limit      int
	Cursor     *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a bookings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repositoryImpl) GetByExternalID(ctx context.Context, channel enums.Channel, externalID string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		First(&booking, "channel = ? AND external_reservation_id = ?", channel, externalID).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repositoryImpl) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *repositoryImpl) List(ctx context.Context, params ListParams) ([]models.Booking, error) {
	query := r.db.WithContext(ctx).Model(&models.Booking{})
	if params.RoomTypeID != nil {
		query = query.Where("room_type_id = ?", *params.RoomTypeID)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID,
		)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var bookings []models.Booking
	err := query.Order("created_at DESC, id DESC").Find(&bookings).Error
	return bookings, err
}

func (r *repositoryImpl) ListConfirmedOverlapping(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("room_type_id = ? AND status = ? AND check_in < ? AND check_out > ?",
			roomTypeID, enums.BookingStatusConfirmed, to, from).
		Order("created_at ASC, id ASC").
		Find(&bookings).Error
	return bookings, err
}

func (r *repositoryImpl) ListByChannel(ctx context.Context, channel enums.Channel, roomTypeID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("channel = ? AND room_type_id = ?", channel, roomTypeID).
		Order("created_at ASC").
		Find(&bookings).Error
	return bookings, err
}
