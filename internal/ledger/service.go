package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// casRetries bounds the blind-write retry loop when no expected version was
// supplied and a concurrent writer bumps the row first.
const casRetries = 3

// Mutation is one requested change to a (room type, date) key. At least one
// of Delta, SetAvailability, SetRate, SetOpen must be present.
type Mutation struct {
	RoomTypeID uuid.UUID
	Date       time.Time
	Source     enums.MutationSource

	// ExpectedVersion, when set, must equal the stored version or the apply
	// fails with a version conflict.
	ExpectedVersion *int64

	// Delta adjusts availability relative to the stored count. A booking is
	// a negative delta; a cancellation a positive one.
	Delta           *int
	SetAvailability *int
	SetRate         *decimal.Decimal
	SetOpen         *bool
}

func (m Mutation) validate() error {
	if m.RoomTypeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if m.Date.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "date required")
	}
	if !m.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid mutation source").
			WithDetails(map[string]any{"source": string(m.Source)})
	}
	if m.Delta == nil && m.SetAvailability == nil && m.SetRate == nil && m.SetOpen == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "mutation changes nothing")
	}
	if m.Delta != nil && m.SetAvailability != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta and absolute availability are mutually exclusive")
	}
	if m.SetAvailability != nil && *m.SetAvailability < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "availability must not be negative")
	}
	if m.SetRate != nil && m.SetRate.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate must not be negative")
	}
	return nil
}

// changePayload is the change-log record of the values a mutation produced.
// Replaying payloads in seq order rebuilds the materialized state.
type changePayload struct {
	AvailableUnits *int             `json:"available_units,omitempty"`
	Rate           *decimal.Decimal `json:"rate,omitempty"`
	IsOpen         *bool            `json:"is_open,omitempty"`
	Delta          *int             `json:"delta,omitempty"`
}

// Service is the inventory ledger: every write flows through Apply, which
// bumps the day version and appends a change-log entry in one transaction.
type Service interface {
	Apply(ctx context.Context, mutation Mutation) (*models.InventoryDay, error)
	// ApplyAll applies every mutation or none.
	ApplyAll(ctx context.Context, mutations []Mutation) ([]models.InventoryDay, error)
	// ApplyInTx composes ledger writes into a caller-owned transaction.
	ApplyInTx(ctx context.Context, tx *gorm.DB, mutation Mutation) (*models.InventoryDay, error)

	GetDay(ctx context.Context, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error)
	// GetDayInTx reads a day inside a caller-owned transaction so capacity
	// checks and the writes they guard see the same state.
	GetDayInTx(ctx context.Context, tx *gorm.DB, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error)
	GetRange(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.InventoryDay, error)

	// SeedDays creates ledger rows for a new room type across the
	// configured horizon.
	SeedDays(ctx context.Context, tx *gorm.DB, roomType *models.RoomType) (int, error)
	// Replay rebuilds the room type's days from the change log and the
	// room type's base state, without touching stored rows.
	Replay(ctx context.Context, roomType *models.RoomType) ([]models.InventoryDay, error)
	// PruneChangeLog drops entries older than the retention window.
	PruneChangeLog(ctx context.Context, retentionDays int) (int64, error)
}

// ServiceParams wires the ledger service dependencies.
type ServiceParams struct {
	Client *db.Client
	Repo   Repository
	Config config.LedgerConfig
	Now    func() time.Time
}

type service struct {
	client *db.Client
	repo   Repository
	cfg    config.LedgerConfig
	now    func() time.Time
}

// NewService validates dependencies and builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if params.Config.InitHorizonDays <= 0 {
		params.Config.InitHorizonDays = 365
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		client: params.Client,
		repo:   params.Repo,
		cfg:    params.Config,
		now:    params.Now,
	}, nil
}

func (s *service) Apply(ctx context.Context, mutation Mutation) (*models.InventoryDay, error) {
	var day *models.InventoryDay
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		applied, err := s.ApplyInTx(ctx, tx, mutation)
		if err != nil {
			return err
		}
		day = applied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

func (s *service) ApplyAll(ctx context.Context, mutations []Mutation) ([]models.InventoryDay, error) {
	if len(mutations) == 0 {
		return nil, nil
	}
	days := make([]models.InventoryDay, 0, len(mutations))
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, m := range mutations {
			day, err := s.ApplyInTx(ctx, tx, m)
			if err != nil {
				return err
			}
			days = append(days, *day)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (s *service) ApplyInTx(ctx context.Context, tx *gorm.DB, mutation Mutation) (*models.InventoryDay, error) {
	if err := mutation.validate(); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	for attempt := 0; attempt < casRetries; attempt++ {
		day, err := repo.GetDay(ctx, mutation.RoomTypeID, normalizeDate(mutation.Date))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory day not found").
					WithDetails(map[string]any{
						"room_type_id": mutation.RoomTypeID,
						"date":         mutation.Date.Format("2006-01-02"),
					})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "load inventory day")
		}

		if mutation.ExpectedVersion != nil && *mutation.ExpectedVersion != day.Version {
			return nil, pkgerrors.New(pkgerrors.CodeVersionConflict, "inventory version advanced").
				WithDetails(map[string]any{
					"expected": *mutation.ExpectedVersion,
					"actual":   day.Version,
				})
		}

		next, payload, changeType, err := buildNextState(day, mutation)
		if err != nil {
			return nil, err
		}

		won, err := repo.UpdateDayVersioned(ctx, next, day.Version)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "write inventory day")
		}
		if !won {
			if mutation.ExpectedVersion != nil {
				return nil, pkgerrors.New(pkgerrors.CodeVersionConflict, "inventory version advanced").
					WithDetails(map[string]any{"expected": *mutation.ExpectedVersion})
			}
			continue
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode change payload")
		}
		entry := &models.ChangeLogEntry{
			ID:         uuid.New(),
			RoomTypeID: next.RoomTypeID,
			Date:       next.Date,
			ChangeType: changeType,
			Payload:    raw,
			Version:    next.Version,
			Source:     mutation.Source,
		}
		if err := repo.AppendChange(ctx, entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "append change log")
		}
		return next, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "inventory day contended, retry")
}

func buildNextState(day *models.InventoryDay, mutation Mutation) (*models.InventoryDay, changePayload, enums.ChangeType, error) {
	next := *day
	var payload changePayload
	changeType := enums.ChangeTypeOpenFlag

	switch {
	case mutation.SetAvailability != nil:
		next.AvailableUnits = *mutation.SetAvailability
		payload.AvailableUnits = &next.AvailableUnits
		changeType = enums.ChangeTypeAvailability
	case mutation.Delta != nil:
		updated := day.AvailableUnits + *mutation.Delta
		if updated < 0 {
			return nil, changePayload{}, "", pkgerrors.New(pkgerrors.CodeCapacityConflict, "availability would go negative").
				WithDetails(map[string]any{
					"date":      day.Date.Format("2006-01-02"),
					"available": day.AvailableUnits,
					"delta":     *mutation.Delta,
				})
		}
		next.AvailableUnits = updated
		payload.AvailableUnits = &next.AvailableUnits
		payload.Delta = mutation.Delta
		changeType = enums.ChangeTypeAvailability
	}

	if mutation.SetRate != nil {
		next.Rate = *mutation.SetRate
		payload.Rate = mutation.SetRate
		if changeType == enums.ChangeTypeOpenFlag {
			changeType = enums.ChangeTypeRate
		}
	}
	if mutation.SetOpen != nil {
		next.IsOpen = *mutation.SetOpen
		payload.IsOpen = mutation.SetOpen
	}

	next.Version = day.Version + 1
	next.LastModifiedBy = mutation.Source
	return &next, payload, changeType, nil
}

func (s *service) GetDay(ctx context.Context, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error) {
	return s.getDay(ctx, s.repo, roomTypeID, date)
}

func (s *service) GetDayInTx(ctx context.Context, tx *gorm.DB, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error) {
	return s.getDay(ctx, s.repo.WithTx(tx), roomTypeID, date)
}

func (s *service) getDay(ctx context.Context, repo Repository, roomTypeID uuid.UUID, date time.Time) (*models.InventoryDay, error) {
	if roomTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	day, err := repo.GetDay(ctx, roomTypeID, normalizeDate(date))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory day not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "load inventory day")
	}
	return day, nil
}

func (s *service) GetRange(ctx context.Context, roomTypeID uuid.UUID, from, to time.Time) ([]models.InventoryDay, error) {
	if roomTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "range end must be after start")
	}
	days, err := s.repo.GetRange(ctx, roomTypeID, normalizeDate(from), normalizeDate(to))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "load inventory range")
	}
	return days, nil
}

func (s *service) SeedDays(ctx context.Context, tx *gorm.DB, roomType *models.RoomType) (int, error) {
	if roomType == nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "room type required")
	}

	start := normalizeDate(s.now().UTC())
	days := make([]models.InventoryDay, 0, s.cfg.InitHorizonDays)
	for i := 0; i < s.cfg.InitHorizonDays; i++ {
		days = append(days, models.InventoryDay{
			RoomTypeID:     roomType.ID,
			Date:           start.AddDate(0, 0, i),
			AvailableUnits: roomType.TotalUnits,
			Rate:           roomType.BaseRate,
			IsOpen:         true,
			Version:        0,
			LastModifiedBy: enums.SourceManual,
		})
	}

	if err := s.repo.WithTx(tx).CreateDays(ctx, days); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "seed inventory days")
	}
	return len(days), nil
}

func (s *service) Replay(ctx context.Context, roomType *models.RoomType) ([]models.InventoryDay, error) {
	if roomType == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type required")
	}

	entries, err := s.repo.ListChanges(ctx, roomType.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list change log")
	}

	byDate := map[string]*models.InventoryDay{}
	for _, entry := range entries {
		key := entry.Date.Format("2006-01-02")
		day, ok := byDate[key]
		if !ok {
			day = &models.InventoryDay{
				RoomTypeID:     roomType.ID,
				Date:           entry.Date,
				AvailableUnits: roomType.TotalUnits,
				Rate:           roomType.BaseRate,
				IsOpen:         true,
			}
			byDate[key] = day
		}

		var payload changePayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode change payload").
				WithDetails(map[string]any{"seq": entry.Seq})
		}
		if payload.AvailableUnits != nil {
			day.AvailableUnits = *payload.AvailableUnits
		}
		if payload.Rate != nil {
			day.Rate = *payload.Rate
		}
		if payload.IsOpen != nil {
			day.IsOpen = *payload.IsOpen
		}
		day.Version = entry.Version
		day.LastModifiedBy = entry.Source
	}

	days := make([]models.InventoryDay, 0, len(byDate))
	for _, day := range byDate {
		days = append(days, *day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

func (s *service) PruneChangeLog(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = s.cfg.ChangeLogRetention
	}
	if retentionDays <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention days required")
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteChangesBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "prune change log")
	}
	return deleted, nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
