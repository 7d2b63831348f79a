package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
	"github.com/davidortega/channelsync-backend/pkg/pagination"
)

// BookingList returns bookings filtered by room type, channel, and status.
func BookingList(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func BookingDetail(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, booking)
	}
}

type bookingResolveRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm cancel"`
}

// BookingResolve settles a conflicted booking by operator decision.
func BookingResolve(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "bookingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req bookingResolveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := reconcile.ParseResolveAction(req.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ResolveConflict(r.Context(), id, action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingEventResponse(result))
	}
}

func listParamsFromQuery(r *http.Request) (bookings.ListParams, error) {
	var params bookings.ListParams

	if raw := strings.TrimSpace(r.URL.Query().Get("room_type_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "must be a valid UUID").
				WithDetails(map[string]any{"field": "room_type_id"})
		}
		params.RoomTypeID = &id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("channel")); raw != "" {
		channel, err := enums.ParseChannel(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "unknown channel").
				WithDetails(map[string]any{"channel": raw})
		}
		params.Channel = &channel
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseBookingStatus(raw)
		if err != nil {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "unknown booking status").
				WithDetails(map[string]any{"status": raw})
		}
		params.Status = &status
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return params, err
	}
	params.Limit = limit

	cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		return params, pkgerrors.New(pkgerrors.CodeValidation, "invalid pagination cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	params.Cursor = cursor
	return params, nil
}
