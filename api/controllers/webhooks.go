package controllers

import (
	"io"
	"net/http"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/ical"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

// maxFeedBytes bounds an inbound ICS payload. Feeds are small; anything
// past this is a broken export or abuse.
const maxFeedBytes = 2 << 20

type bookingReceivedRequest struct {
	Channel    string  `json:"channel" validate:"required"`
	ExternalID string  `json:"external_id" validate:"required"`
	RoomTypeID string  `json:"room_type_id" validate:"required,uuid"`
	CheckIn    string  `json:"check_in" validate:"required"`
	CheckOut   string  `json:"check_out" validate:"required"`
	Units      int     `json:"units" validate:"required,gt=0"`
	GuestName  *string `json:"guest_name,omitempty"`
	GuestEmail *string `json:"guest_email,omitempty" validate:"omitempty,email"`
}

type bookingEventResponse struct {
	BookingID string                `json:"booking_id"`
	Status    enums.BookingStatus   `json:"status"`
	State     enums.EventState      `json:"state"`
	Deduped   bool                  `json:"deduped"`
	Days      []models.InventoryDay `json:"days,omitempty"`
}

func newBookingEventResponse(result *reconcile.BookingResult) bookingEventResponse {
	resp := bookingEventResponse{
		State:   result.State,
		Deduped: result.Deduped,
		Days:    result.Days,
	}
	if result.Booking != nil {
		resp.BookingID = result.Booking.ID.String()
		resp.Status = result.Booking.Status
	}
	return resp
}

// BookingReceived ingests a reservation webhook through the reconciler.
func BookingReceived(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookingReceivedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := bookingEventFromRequest(req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithChannel(r.Context(), string(event.Channel))
		result, err := svc.ProcessBooking(ctx, event)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBookingEventResponse(result))
	}
}

type bookingCancelledRequest struct {
	Channel    string `json:"channel" validate:"required"`
	ExternalID string `json:"external_id" validate:"required"`
}

// BookingCancelled ingests a cancellation webhook and restores capacity.
func BookingCancelled(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookingCancelledRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		channel, err := enums.ParseChannel(req.Channel)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
					WithDetails(map[string]any{"channel": req.Channel}))
			return
		}

		ctx := logg.WithChannel(r.Context(), string(channel))
		result, err := svc.ProcessCancellation(ctx, reconcile.CancellationEvent{
			Channel:    channel,
			ExternalID: req.ExternalID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingEventResponse(result))
	}
}

// ICalSync ingests a full calendar feed for one mapped room type. The body
// is the raw ICS document; the feed is diffed against known bookings so
// replays are harmless.
func ICalSync(svc reconcile.Service, roomsRepo rooms.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, err := parseChannelParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roomTypeID, err := validators.ParseQueryUUID(r, "room_type_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxFeedBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read feed body"))
			return
		}

		ranges, err := ical.Parse(string(body))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithChannel(r.Context(), string(channel))
		ctx = logg.WithRoomType(ctx, roomTypeID.String())

		mapping, err := roomsRepo.GetMapping(ctx, roomTypeID, channel)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeNotFound, "room type is not mapped to channel"))
			return
		}

		feed := make([]reconcile.FeedReservation, 0, len(ranges))
		for _, blocked := range ranges {
			feed = append(feed, reconcile.FeedReservation{
				ExternalID: blocked.UID,
				CheckIn:    blocked.Start,
				CheckOut:   blocked.End,
				Units:      1,
			})
		}

		result, err := svc.ProcessFeed(ctx, *mapping, feed)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func bookingEventFromRequest(req bookingReceivedRequest) (reconcile.BookingEvent, error) {
	channel, err := enums.ParseChannel(req.Channel)
	if err != nil {
		return reconcile.BookingEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
			WithDetails(map[string]any{"channel": req.Channel})
	}
	roomTypeID, err := validators.ParseUUIDString("room_type_id", req.RoomTypeID)
	if err != nil {
		return reconcile.BookingEvent{}, err
	}
	checkIn, err := parseBodyDate("check_in", req.CheckIn)
	if err != nil {
		return reconcile.BookingEvent{}, err
	}
	checkOut, err := parseBodyDate("check_out", req.CheckOut)
	if err != nil {
		return reconcile.BookingEvent{}, err
	}

	return reconcile.BookingEvent{
		Channel:    channel,
		ExternalID: req.ExternalID,
		RoomTypeID: roomTypeID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Units:      req.Units,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
	}, nil
}
