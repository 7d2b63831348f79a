package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

type roomTypeCreateRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	TotalUnits  int     `json:"total_units" validate:"required,gt=0"`
	BaseRate    string  `json:"base_rate" validate:"required"`
	Currency    string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	MaxGuests   int     `json:"max_guests,omitempty" validate:"omitempty,gt=0"`
}

// RoomTypeCreate registers a room type and seeds its inventory horizon.
func RoomTypeCreate(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roomTypeCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		baseRate, err := decimal.NewFromString(req.BaseRate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "must be a decimal amount").
					WithDetails(map[string]any{"field": "base_rate"}))
			return
		}

		roomType, err := svc.CreateRoomType(r.Context(), rooms.CreateRoomTypeParams{
			Name:        req.Name,
			Description: req.Description,
			TotalUnits:  req.TotalUnits,
			BaseRate:    baseRate,
			Currency:    req.Currency,
			MaxGuests:   req.MaxGuests,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, roomType)
	}
}

func RoomTypeList(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypes, err := svc.ListRoomTypes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, roomTypes)
	}
}

func RoomTypeDetail(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		roomType, err := svc.GetRoomType(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, roomType)
	}
}

type roomTypeUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	TotalUnits  *int    `json:"total_units,omitempty" validate:"omitempty,gt=0"`
	BaseRate    *string `json:"base_rate,omitempty"`
	MaxGuests   *int    `json:"max_guests,omitempty" validate:"omitempty,gt=0"`
}

func RoomTypeUpdate(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req roomTypeUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := rooms.UpdateRoomTypeParams{
			Name:        req.Name,
			Description: req.Description,
			TotalUnits:  req.TotalUnits,
			MaxGuests:   req.MaxGuests,
		}
		if req.BaseRate != nil {
			baseRate, err := decimal.NewFromString(*req.BaseRate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "must be a decimal amount").
						WithDetails(map[string]any{"field": "base_rate"}))
				return
			}
			params.BaseRate = &baseRate
		}

		roomType, err := svc.UpdateRoomType(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, roomType)
	}
}

type mappingCreateRequest struct {
	Channel       string  `json:"channel" validate:"required"`
	OTARoomID     string  `json:"ota_room_id" validate:"required"`
	OTAPropertyID *string `json:"ota_property_id,omitempty"`
	ICalURL       *string `json:"ical_url,omitempty" validate:"omitempty,url"`
}

// MappingCreate links a room type to a channel listing.
func MappingCreate(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypeID, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req mappingCreateRequest
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

		mapping, err := svc.CreateMapping(r.Context(), rooms.CreateMappingParams{
			RoomTypeID:    roomTypeID,
			Channel:       channel,
			OTARoomID:     req.OTARoomID,
			OTAPropertyID: req.OTAPropertyID,
			ICalURL:       req.ICalURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, mapping)
	}
}

func MappingList(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypeID, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		mappings, err := svc.ListMappings(r.Context(), roomTypeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mappings)
	}
}

type mappingActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// MappingSetActive pauses or resumes outbound sync for one mapping.
func MappingSetActive(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mappingID, err := validators.ParseUUIDParam(r, "mappingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req mappingActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetMappingActive(r.Context(), mappingID, *req.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": mappingID, "active": *req.Active})
	}
}
