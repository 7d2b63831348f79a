package reconcile

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/internal/scheduler"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// ProcessFeed treats the feed as the channel's source of truth: ranges not
// yet known become bookings, known bookings missing from the feed are
// cancelled. Re-ingesting an identical feed changes nothing.
func (s *service) ProcessFeed(ctx context.Context, mapping models.ChannelMapping, feed []FeedReservation) (*FeedResult, error) {
	if !mapping.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "channel mapping inactive").
			WithDetails(map[string]any{"channel": string(mapping.Channel)})
	}
	ctx = s.log.WithFields(ctx, map[string]any{
		"channel":      string(mapping.Channel),
		"room_type_id": mapping.RoomTypeID.String(),
	})

	existing, err := s.bookings.ListByChannel(ctx, mapping.Channel, mapping.RoomTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageFailure, err, "list channel bookings")
	}
	known := make(map[string]*models.Booking, len(existing))
	for i := range existing {
		known[existing[i].ExternalReservationID] = &existing[i]
	}

	result := &FeedResult{}
	seen := make(map[string]bool, len(feed))
	for _, item := range feed {
		if item.ExternalID == "" {
			continue
		}
		seen[item.ExternalID] = true

		booking, ok := known[item.ExternalID]
		switch {
		case item.Cancelled && !ok:
			result.Unchanged++
		case item.Cancelled:
			if booking.Status == enums.BookingStatusCancelled {
				result.Unchanged++
				continue
			}
			if _, err := s.ProcessCancellation(ctx, CancellationEvent{
				Channel:    mapping.Channel,
				ExternalID: item.ExternalID,
			}); err != nil {
				return nil, err
			}
			result.Cancelled++
		case ok:
			result.Unchanged++
		default:
			units := item.Units
			if units <= 0 {
				units = 1
			}
			res, err := s.ProcessBooking(ctx, BookingEvent{
				Channel:    mapping.Channel,
				ExternalID: item.ExternalID,
				RoomTypeID: mapping.RoomTypeID,
				CheckIn:    item.CheckIn,
				CheckOut:   item.CheckOut,
				Units:      units,
			})
			if err != nil {
				return nil, err
			}
			if res.State == enums.EventStateConflictQueued {
				result.Conflicts++
			} else {
				result.Added++
			}
		}
	}

	// Bookings the feed no longer lists were cancelled at the source.
	for externalID, booking := range known {
		if seen[externalID] || booking.Status == enums.BookingStatusCancelled {
			continue
		}
		if _, err := s.ProcessCancellation(ctx, CancellationEvent{
			Channel:    mapping.Channel,
			ExternalID: externalID,
		}); err != nil {
			return nil, err
		}
		result.Cancelled++
	}

	s.log.Info(ctx, "feed ingested")
	return result, nil
}

// ProcessBulk applies dashboard edits as manual-source ledger mutations,
// atomically, then fans the results out to every active channel.
func (s *service) ProcessBulk(ctx context.Context, roomTypeID uuid.UUID, changes []BulkChange) ([]models.InventoryDay, error) {
	if roomTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if len(changes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes supplied")
	}

	mutations := make([]ledger.Mutation, 0, len(changes))
	for _, change := range changes {
		mutations = append(mutations, ledger.Mutation{
			RoomTypeID:      roomTypeID,
			Date:            change.Date,
			Source:          enums.SourceManual,
			ExpectedVersion: change.ExpectedVersion,
			SetAvailability: change.SetAvailability,
			SetRate:         change.SetRate,
			SetOpen:         change.SetOpen,
		})
	}

	days, err := s.ledger.ApplyAll(ctx, mutations)
	if err != nil {
		return nil, err
	}

	s.fanOutAvailability(ctx, roomTypeID, days, nil)
	s.fanOutRates(ctx, roomTypeID, days, changes)
	return days, nil
}

// fanOutRates queues rate pushes for the bulk changes that set one.
func (s *service) fanOutRates(ctx context.Context, roomTypeID uuid.UUID, days []models.InventoryDay, changes []BulkChange) {
	rated := make([]models.InventoryDay, 0, len(days))
	for i, change := range changes {
		if change.SetRate != nil && i < len(days) {
			rated = append(rated, days[i])
		}
	}
	if len(rated) == 0 {
		return
	}

	roomType, err := s.rooms.GetRoomType(ctx, roomTypeID)
	if err != nil {
		s.log.Error(ctx, "load room type for rate fan-out failed", err)
		return
	}
	mappings, err := s.rooms.ListMappings(ctx, roomTypeID)
	if err != nil {
		s.log.Error(ctx, "list mappings for rate fan-out failed", err)
		return
	}

	var tasks []scheduler.Task
	for _, mapping := range mappings {
		if !mapping.IsActive {
			continue
		}
		for _, day := range rated {
			tasks = append(tasks, scheduler.Task{
				Channel:       mapping.Channel,
				RoomTypeID:    roomTypeID,
				Date:          day.Date,
				Kind:          enums.TaskKindRate,
				TargetVersion: day.Version,
				Rate:          day.Rate,
				Currency:      roomType.Currency,
			})
		}
	}
	if len(tasks) == 0 {
		return
	}
	if err := s.tasks.Enqueue(ctx, tasks...); err != nil {
		s.log.Error(ctx, "enqueue rate tasks failed", err)
	}
}
