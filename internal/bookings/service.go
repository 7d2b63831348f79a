package bookings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/pagination"
)

// Service exposes read access to bookings; writes flow through the
// reconciliation engine.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListConflicts(ctx context.Context, roomTypeID *uuid.UUID) ([]models.Booking, error)
}

// ListResult is one page of bookings plus the cursor for the next page.
type ListResult struct {
	Items      []models.Booking `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires bookings dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bookings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "get booking")
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").
			WithDetails(map[string]any{"status": string(*params.Status)})
	}
	if params.Channel != nil && !params.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
			WithDetails(map[string]any{"channel": string(*params.Channel)})
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	params.Limit = pagination.LimitWithBuffer(params.Limit)

	items, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list bookings")
	}

	result := &ListResult{Items: items}
	if len(items) > pageSize {
		result.Items = items[:pageSize]
		last := result.Items[pageSize-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *service) ListConflicts(ctx context.Context, roomTypeID *uuid.UUID) ([]models.Booking, error) {
	status := enums.BookingStatusConflict
	items, err := s.repo.List(ctx, ListParams{
		RoomTypeID: roomTypeID,
		Status:     &status,
		Limit:      pagination.MaxLimit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list conflicted bookings")
	}
	return items, nil
}
