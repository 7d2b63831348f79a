package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/channels"
	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/internal/scheduler"
	"github.com/davidortega/channelsync-backend/pkg/config"
	"github.com/davidortega/channelsync-backend/pkg/db"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

// TaskEnqueuer queues outbound sync work. Satisfied by the scheduler.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, tasks ...scheduler.Task) error
}

// Service is the reconciliation engine: every inbound event (webhook,
// feed, dashboard edit) flows through it, which validates the event,
// applies ledger mutations transactionally, resolves double-bookings
// deterministically, and fans sync tasks out to the other channels.
type Service interface {
	ProcessBooking(ctx context.Context, event BookingEvent) (*BookingResult, error)
	ProcessCancellation(ctx context.Context, event CancellationEvent) (*BookingResult, error)
	// ProcessFeed diffs a full calendar feed against the channel's known
	// bookings: new ranges are ingested, vanished ones cancelled.
	ProcessFeed(ctx context.Context, mapping models.ChannelMapping, feed []FeedReservation) (*FeedResult, error)
	// ProcessBulk applies manual dashboard edits atomically.
	ProcessBulk(ctx context.Context, roomTypeID uuid.UUID, changes []BulkChange) ([]models.InventoryDay, error)
	// ResolveConflict settles a conflicted booking by operator decision.
	ResolveConflict(ctx context.Context, bookingID uuid.UUID, action ResolveAction) (*BookingResult, error)
	// RateParity writes rates locally and pushes them to every capable
	// channel, reporting per-channel outcomes.
	RateParity(ctx context.Context, req ParityRequest) (*ParityResult, error)
}

// ServiceParams wires the reconciliation engine dependencies.
type ServiceParams struct {
	Client   *db.Client
	Bookings bookings.Repository
	Rooms    rooms.Repository
	Ledger   ledger.Service
	Tasks    TaskEnqueuer
	Registry *channels.Registry
	Logger   *logger.Logger
	Config   config.ReconcileConfig
	// PushTimeout bounds the synchronous adapter calls made by RateParity.
	PushTimeout time.Duration
}

type service struct {
	client      *db.Client
	bookings    bookings.Repository
	rooms       rooms.Repository
	ledger      ledger.Service
	tasks       TaskEnqueuer
	registry    *channels.Registry
	log         *logger.Logger
	cfg         config.ReconcileConfig
	pushTimeout time.Duration
}

// NewService validates dependencies and builds the reconciliation engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bookings repository required")
	}
	if params.Rooms == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "rooms repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if params.Tasks == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "task enqueuer required")
	}
	if params.Registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "adapter registry required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.PushTimeout <= 0 {
		params.PushTimeout = 10 * time.Second
	}
	return &service{
		client:      params.Client,
		bookings:    params.Bookings,
		rooms:       params.Rooms,
		ledger:      params.Ledger,
		tasks:       params.Tasks,
		registry:    params.Registry,
		log:         params.Logger,
		cfg:         params.Config,
		pushTimeout: params.PushTimeout,
	}, nil
}

func (s *service) ProcessBooking(ctx context.Context, event BookingEvent) (*BookingResult, error) {
	if err := event.validate(); err != nil {
		return nil, err
	}
	event.CheckIn = normalizeDate(event.CheckIn)
	event.CheckOut = normalizeDate(event.CheckOut)
	ctx = s.log.WithFields(ctx, map[string]any{
		"channel":     string(event.Channel),
		"external_id": event.ExternalID,
	})

	if err := s.requireActiveMapping(ctx, event.RoomTypeID, event.Channel); err != nil {
		return nil, err
	}

	if existing, err := s.bookings.GetByExternalID(ctx, event.Channel, event.ExternalID); err == nil {
		s.log.Info(ctx, "booking already ingested")
		return &BookingResult{Booking: existing, State: stateForStatus(existing.Status), Deduped: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "lookup booking")
	}

	booking := &models.Booking{
		ID:                    uuid.New(),
		RoomTypeID:            event.RoomTypeID,
		Channel:               event.Channel,
		ExternalReservationID: event.ExternalID,
		CheckIn:               event.CheckIn,
		CheckOut:              event.CheckOut,
		Units:                 event.Units,
		GuestName:             event.GuestName,
		GuestEmail:            event.GuestEmail,
		Status:                enums.BookingStatusConfirmed,
	}

	var days []models.InventoryDay
	conflicted := false
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, night := range booking.Nights() {
			day, err := s.ledger.GetDayInTx(ctx, tx, booking.RoomTypeID, night)
			if err != nil {
				return err
			}
			if day.EffectiveAvailability() < booking.Units {
				conflicted = true
				break
			}
		}
		if conflicted {
			// Earliest created_at wins; the incoming booking is the
			// newest claim on the capacity, so it loses.
			booking.Status = enums.BookingStatusConflict
			return s.bookings.WithTx(tx).Create(ctx, booking)
		}

		if err := s.bookings.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "create booking")
		}
		delta := -booking.Units
		for _, night := range booking.Nights() {
			day, err := s.ledger.ApplyInTx(ctx, tx, ledger.Mutation{
				RoomTypeID: booking.RoomTypeID,
				Date:       night,
				Source:     enums.SourceChannel(booking.Channel),
				Delta:      &delta,
			})
			if err != nil {
				return err
			}
			days = append(days, *day)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "ux_bookings_channel_external_id") {
			// Concurrent delivery of the same reservation.
			existing, lookupErr := s.bookings.GetByExternalID(ctx, event.Channel, event.ExternalID)
			if lookupErr == nil {
				return &BookingResult{Booking: existing, State: stateForStatus(existing.Status), Deduped: true}, nil
			}
			return nil, err
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeCapacityConflict) {
			return nil, err
		}
		// The pre-check passed but a concurrent confirmation consumed the
		// units before the apply landed. The incoming claim is still the
		// newest, so it loses: record the conflict instead of bouncing the
		// channel with a non-retryable rejection.
		booking.Status = enums.BookingStatusConflict
		days = nil
		conflicted = true
		createErr := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			return s.bookings.WithTx(tx).Create(ctx, booking)
		})
		if createErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, createErr, "record conflicted booking")
		}
	}

	if conflicted {
		s.log.Warn(ctx, "booking over capacity, queued as conflict")
		if s.cfg.ConflictPolicy == config.ConflictPolicyAutoCancel {
			s.enqueueCancellation(ctx, booking)
		}
		return &BookingResult{Booking: booking, State: enums.EventStateConflictQueued}, nil
	}

	s.fanOutAvailability(ctx, booking.RoomTypeID, days, &booking.Channel)
	return &BookingResult{Booking: booking, State: enums.EventStateApplied, Days: days}, nil
}

func (s *service) ProcessCancellation(ctx context.Context, event CancellationEvent) (*BookingResult, error) {
	if err := event.validate(); err != nil {
		return nil, err
	}
	ctx = s.log.WithFields(ctx, map[string]any{
		"channel":     string(event.Channel),
		"external_id": event.ExternalID,
	})

	booking, err := s.bookings.GetByExternalID(ctx, event.Channel, event.ExternalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found").
				WithDetails(map[string]any{"external_id": event.ExternalID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "lookup booking")
	}

	if booking.Status == enums.BookingStatusCancelled {
		s.log.Info(ctx, "booking already cancelled")
		return &BookingResult{Booking: booking, State: enums.EventStateApplied, Deduped: true}, nil
	}

	restoresCapacity := booking.Status == enums.BookingStatusConfirmed
	var days []models.InventoryDay
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		booking.Status = enums.BookingStatusCancelled
		if err := s.bookings.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "update booking")
		}
		if !restoresCapacity {
			// A conflicted booking never held capacity.
			return nil
		}
		delta := booking.Units
		for _, night := range booking.Nights() {
			day, err := s.ledger.ApplyInTx(ctx, tx, ledger.Mutation{
				RoomTypeID: booking.RoomTypeID,
				Date:       night,
				Source:     enums.SourceChannel(event.Channel),
				Delta:      &delta,
			})
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

	s.fanOutAvailability(ctx, booking.RoomTypeID, days, &booking.Channel)
	return &BookingResult{Booking: booking, State: enums.EventStateApplied, Days: days}, nil
}

func (s *service) ResolveConflict(ctx context.Context, bookingID uuid.UUID, action ResolveAction) (*BookingResult, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	if _, err := ParseResolveAction(string(action)); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "lookup booking")
	}
	if booking.Status != enums.BookingStatusConflict {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "booking is not in conflict").
			WithDetails(map[string]any{"status": string(booking.Status)})
	}

	if action == ResolveCancel {
		err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
			booking.Status = enums.BookingStatusCancelled
			return s.bookings.WithTx(tx).Update(ctx, booking)
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "cancel conflicted booking")
		}
		s.enqueueCancellation(ctx, booking)
		return &BookingResult{Booking: booking, State: enums.EventStateApplied}, nil
	}

	// Confirm: capacity must exist now, e.g. after another booking was
	// cancelled or the operator raised availability.
	var days []models.InventoryDay
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, night := range booking.Nights() {
			day, err := s.ledger.GetDayInTx(ctx, tx, booking.RoomTypeID, night)
			if err != nil {
				return err
			}
			if day.EffectiveAvailability() < booking.Units {
				return pkgerrors.New(pkgerrors.CodeCapacityConflict, "capacity still unavailable").
					WithDetails(map[string]any{
						"date":      night.Format("2006-01-02"),
						"available": day.EffectiveAvailability(),
						"requested": booking.Units,
					})
			}
		}
		booking.Status = enums.BookingStatusConfirmed
		if err := s.bookings.WithTx(tx).Update(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "confirm booking")
		}
		delta := -booking.Units
		for _, night := range booking.Nights() {
			day, err := s.ledger.ApplyInTx(ctx, tx, ledger.Mutation{
				RoomTypeID: booking.RoomTypeID,
				Date:       night,
				Source:     enums.SourceReconciliation,
				Delta:      &delta,
			})
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

	s.fanOutAvailability(ctx, booking.RoomTypeID, days, &booking.Channel)
	return &BookingResult{Booking: booking, State: enums.EventStateApplied, Days: days}, nil
}

func (s *service) requireActiveMapping(ctx context.Context, roomTypeID uuid.UUID, ch enums.Channel) error {
	mapping, err := s.rooms.GetMapping(ctx, roomTypeID, ch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "channel not mapped to room type").
				WithDetails(map[string]any{"channel": string(ch)})
		}
		return pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "lookup channel mapping")
	}
	if !mapping.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "channel mapping inactive").
			WithDetails(map[string]any{"channel": string(ch)})
	}
	return nil
}

// fanOutAvailability queues availability pushes for every active mapped
// channel except the event's originator.
func (s *service) fanOutAvailability(ctx context.Context, roomTypeID uuid.UUID, days []models.InventoryDay, exclude *enums.Channel) {
	if len(days) == 0 {
		return
	}
	mappings, err := s.rooms.ListMappings(ctx, roomTypeID)
	if err != nil {
		s.log.Error(ctx, "list mappings for fan-out failed", err)
		return
	}

	var tasks []scheduler.Task
	for _, mapping := range mappings {
		if !mapping.IsActive {
			continue
		}
		if exclude != nil && mapping.Channel == *exclude {
			continue
		}
		for _, day := range days {
			tasks = append(tasks, scheduler.Task{
				Channel:       mapping.Channel,
				RoomTypeID:    roomTypeID,
				Date:          day.Date,
				Kind:          enums.TaskKindAvailability,
				TargetVersion: day.Version,
				Available:     day.EffectiveAvailability(),
			})
		}
	}
	if len(tasks) == 0 {
		return
	}
	if err := s.tasks.Enqueue(ctx, tasks...); err != nil {
		s.log.Error(ctx, "enqueue availability tasks failed", err)
	}
}

// enqueueCancellation pushes a cancellation back to the booking's channel.
func (s *service) enqueueCancellation(ctx context.Context, booking *models.Booking) {
	err := s.tasks.Enqueue(ctx, scheduler.Task{
		Channel:       booking.Channel,
		RoomTypeID:    booking.RoomTypeID,
		Date:          booking.CheckIn,
		Kind:          enums.TaskKindCancellation,
		TargetVersion: 0,
		ExternalID:    booking.ExternalReservationID,
	})
	if err != nil {
		s.log.Error(ctx, "enqueue cancellation task failed", err)
	}
}

func stateForStatus(status enums.BookingStatus) enums.EventState {
	if status == enums.BookingStatusConflict {
		return enums.EventStateConflictQueued
	}
	return enums.EventStateApplied
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
