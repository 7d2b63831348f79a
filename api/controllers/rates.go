package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

type rateParityRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
	Rate string `json:"rate" validate:"required"`
}

// RateParity writes a rate across a date range and pushes it to every
// capable channel. The ledger write sticks even when pushes fail; the
// per-channel results tell the operator what to chase.
func RateParity(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypeID, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req rateParityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := parseBodyDate("from", req.From)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := parseBodyDate("to", req.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rate, err := decimal.NewFromString(req.Rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "must be a decimal amount").
					WithDetails(map[string]any{"field": "rate"}))
			return
		}

		ctx := logg.WithRoomType(r.Context(), roomTypeID.String())
		result, err := svc.RateParity(ctx, reconcile.ParityRequest{
			RoomTypeID: roomTypeID,
			From:       from,
			To:         to,
			Rate:       rate,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
