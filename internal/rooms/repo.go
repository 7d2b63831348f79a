package rooms

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// Repository exposes persistence helpers for room types and their channel
// mappings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRoomType(ctx context.Context, roomType *models.RoomType) error
	GetRoomType(ctx context.Context, id uuid.UUID) (*models.RoomType, error)
	ListRoomTypes(ctx context.Context) ([]models.RoomType, error)
	UpdateRoomType(ctx context.Context, roomType *models.RoomType) error

	CreateMapping(ctx context.Context, mapping *models.ChannelMapping) error
	GetMapping(ctx context.Context, roomTypeID uuid.UUID, channel enums.Channel) (*models.ChannelMapping, error)
	ListMappings(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChannelMapping, error)
	ListActiveMappingsByChannel(ctx context.Context, channel enums.Channel) ([]models.ChannelMapping, error)
	ListActiveFeedMappings(ctx context.Context) ([]models.ChannelMapping, error)
	SetMappingActive(ctx context.Context, mappingID uuid.UUID, active bool) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a rooms repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateRoomType(ctx context.Context, roomType *models.RoomType) error {
	return r.db.WithContext(ctx).Create(roomType).Error
}

func (r *repositoryImpl) GetRoomType(ctx context.Context, id uuid.UUID) (*models.RoomType, error) {
	var roomType models.RoomType
	err := r.db.WithContext(ctx).First(&roomType, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &roomType, nil
}

func (r *repositoryImpl) ListRoomTypes(ctx context.Context) ([]models.RoomType, error) {
	var roomTypes []models.RoomType
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&roomTypes).Error
	return roomTypes, err
}

func (r *repositoryImpl) UpdateRoomType(ctx context.Context, roomType *models.RoomType) error {
	return r.db.WithContext(ctx).Save(roomType).Error
}

func (r *repositoryImpl) CreateMapping(ctx context.Context, mapping *models.ChannelMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

func (r *repositoryImpl) GetMapping(ctx context.Context, roomTypeID uuid.UUID, channel enums.Channel) (*models.ChannelMapping, error) {
	var mapping models.ChannelMapping
	err := r.db.WithContext(ctx).
		First(&mapping, "room_type_id = ? AND channel = ?", roomTypeID, channel).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

func (r *repositoryImpl) ListMappings(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChannelMapping, error) {
	var mappings []models.ChannelMapping
	err := r.db.WithContext(ctx).
		Where("room_type_id = ?", roomTypeID).
		Order("channel ASC").
		Find(&mappings).Error
	return mappings, err
}

func (r *repositoryImpl) ListActiveMappingsByChannel(ctx context.Context, channel enums.Channel) ([]models.ChannelMapping, error) {
	var mappings []models.ChannelMapping
	err := r.db.WithContext(ctx).
		Where("channel = ? AND is_active = ?", channel, true).
		Find(&mappings).Error
	return mappings, err
}

// ListActiveFeedMappings returns active mappings that carry an iCal URL,
// i.e. the ones the feed refresh job polls.
func (r *repositoryImpl) ListActiveFeedMappings(ctx context.Context) ([]models.ChannelMapping, error) {
	var mappings []models.ChannelMapping
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND ical_url IS NOT NULL AND ical_url <> ''", true).
		Find(&mappings).Error
	return mappings, err
}

func (r *repositoryImpl) SetMappingActive(ctx context.Context, mappingID uuid.UUID, active bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ChannelMapping{}).
		Where("id = ?", mappingID).
		Update("is_active", active)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
