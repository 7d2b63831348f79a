package rooms

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// InventorySeeder initializes ledger rows for a newly created room type.
// Implemented by the ledger service; declared here so room creation can seed
// inventory inside its own transaction.
type InventorySeeder interface {
	SeedDays(ctx context.Context, tx *gorm.DB, roomType *models.RoomType) (int, error)
}

// Service defines room type and channel mapping administration.
type Service interface {
	CreateRoomType(ctx context.Context, params CreateRoomTypeParams) (*models.RoomType, error)
	GetRoomType(ctx context.Context, id uuid.UUID) (*models.RoomType, error)
	ListRoomTypes(ctx context.Context) ([]models.RoomType, error)
	UpdateRoomType(ctx context.Context, id uuid.UUID, params UpdateRoomTypeParams) (*models.RoomType, error)

	CreateMapping(ctx context.Context, params CreateMappingParams) (*models.ChannelMapping, error)
	ListMappings(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChannelMapping, error)
	SetMappingActive(ctx context.Context, mappingID uuid.UUID, active bool) error
}

// ServiceParams wires the rooms service dependencies.
type ServiceParams struct {
	Client *db.Client
	Repo   Repository
	Seeder InventorySeeder
}

type service struct {
	client *db.Client
	repo   Repository
	seeder InventorySeeder
}

// NewService validates dependencies and builds the rooms service.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rooms repository required")
	}
	if params.Seeder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory seeder required")
	}
	return &service{client: params.Client, repo: params.Repo, seeder: params.Seeder}, nil
}

// CreateRoomTypeParams carries validated room type attributes.
type CreateRoomTypeParams struct {
	Name        string
	Description *string
	TotalUnits  int
	BaseRate    decimal.Decimal
	Currency    string
	MaxGuests   int
}

// UpdateRoomTypeParams carries optional room type edits.
type UpdateRoomTypeParams struct {
	Name        *string
	Description *string
	TotalUnits  *int
	BaseRate    *decimal.Decimal
	MaxGuests   *int
}

// CreateMappingParams links a room type to a channel listing.
type CreateMappingParams struct {
	RoomTypeID    uuid.UUID
	Channel       enums.Channel
	OTARoomID     string
	OTAPropertyID *string
	ICalURL       *string
}

func (s *service) CreateRoomType(ctx context.Context, params CreateRoomTypeParams) (*models.RoomType, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type name required")
	}
	if params.TotalUnits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total units must be positive")
	}
	if params.BaseRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base rate must not be negative")
	}

	roomType := &models.RoomType{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		TotalUnits:  params.TotalUnits,
		BaseRate:    params.BaseRate,
		Currency:    params.Currency,
		MaxGuests:   params.MaxGuests,
	}
	if roomType.Currency == "" {
		roomType.Currency = "USD"
	}
	if roomType.MaxGuests <= 0 {
		roomType.MaxGuests = 2
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateRoomType(ctx, roomType); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "create room type")
		}
		if _, err := s.seeder.SeedDays(ctx, tx, roomType); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roomType, nil
}

func (s *service) GetRoomType(ctx context.Context, id uuid.UUID) (*models.RoomType, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	roomType, err := s.repo.GetRoomType(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "room type not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "get room type")
	}
	return roomType, nil
}

func (s *service) ListRoomTypes(ctx context.Context) ([]models.RoomType, error) {
	roomTypes, err := s.repo.ListRoomTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list room types")
	}
	return roomTypes, nil
}

func (s *service) UpdateRoomType(ctx context.Context, id uuid.UUID, params UpdateRoomTypeParams) (*models.RoomType, error) {
	roomType, err := s.GetRoomType(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type name required")
		}
		roomType.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		roomType.Description = params.Description
	}
	if params.TotalUnits != nil {
		if *params.TotalUnits <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "total units must be positive")
		}
		roomType.TotalUnits = *params.TotalUnits
	}
	if params.BaseRate != nil {
		if params.BaseRate.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "base rate must not be negative")
		}
		roomType.BaseRate = *params.BaseRate
	}
	if params.MaxGuests != nil {
		if *params.MaxGuests <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "max guests must be positive")
		}
		roomType.MaxGuests = *params.MaxGuests
	}

	if err := s.repo.UpdateRoomType(ctx, roomType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "update room type")
	}
	return roomType, nil
}

func (s *service) CreateMapping(ctx context.Context, params CreateMappingParams) (*models.ChannelMapping, error) {
	if params.RoomTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if !params.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
			WithDetails(map[string]any{"channel": string(params.Channel)})
	}
	if strings.TrimSpace(params.OTARoomID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ota room id required")
	}

	if _, err := s.GetRoomType(ctx, params.RoomTypeID); err != nil {
		return nil, err
	}

	mapping := &models.ChannelMapping{
		ID:            uuid.New(),
		RoomTypeID:    params.RoomTypeID,
		Channel:       params.Channel,
		OTARoomID:     strings.TrimSpace(params.OTARoomID),
		OTAPropertyID: params.OTAPropertyID,
		ICalURL:       params.ICalURL,
		IsActive:      true,
	}

	if err := s.repo.CreateMapping(ctx, mapping); err != nil {
		if db.IsUniqueViolation(err, "ux_channel_mappings_room_channel") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "room type already mapped to channel")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "create channel mapping")
	}
	return mapping, nil
}

func (s *service) ListMappings(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChannelMapping, error) {
	if roomTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	mappings, err := s.repo.ListMappings(ctx, roomTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list channel mappings")
	}
	return mappings, nil
}

func (s *service) SetMappingActive(ctx context.Context, mappingID uuid.UUID, active bool) error {
	if mappingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "mapping id required")
	}
	found, err := s.repo.SetMappingActive(ctx, mappingID, active)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "update channel mapping")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "channel mapping not found")
	}
	return nil
}
