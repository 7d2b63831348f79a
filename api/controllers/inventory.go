package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/api/responses"
	"github.com/davidortega/channelsync-backend/api/validators"
	"github.com/davidortega/channelsync-backend/internal/ledger"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

// maxBulkChanges bounds one dashboard submission to roughly a year of days.
const maxBulkChanges = 400

// InventoryRange returns the versioned inventory days for a room type over
// a half-open [from, to) range.
func InventoryRange(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypeID, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		days, err := svc.GetRange(r.Context(), roomTypeID, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, days)
	}
}

type bulkChangeRequest struct {
	Date            string  `json:"date" validate:"required"`
	SetAvailability *int    `json:"set_availability,omitempty" validate:"omitempty,gte=0"`
	SetRate         *string `json:"set_rate,omitempty"`
	SetOpen         *bool   `json:"set_open,omitempty"`
	ExpectedVersion *int64  `json:"expected_version,omitempty"`
}

type inventoryBulkRequest struct {
	Changes []bulkChangeRequest `json:"changes" validate:"required,min=1,dive"`
}

// InventoryBulk applies manual dashboard edits atomically: every change
// lands or none do.
func InventoryBulk(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomTypeID, err := validators.ParseUUIDParam(r, "roomTypeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req inventoryBulkRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(req.Changes) > maxBulkChanges {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "too many changes in one request").
					WithDetails(map[string]any{"max": maxBulkChanges}))
			return
		}

		changes := make([]reconcile.BulkChange, 0, len(req.Changes))
		for _, change := range req.Changes {
			parsed, err := bulkChangeFromRequest(change)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			changes = append(changes, parsed)
		}

		ctx := logg.WithRoomType(r.Context(), roomTypeID.String())
		days, err := svc.ProcessBulk(ctx, roomTypeID, changes)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, days)
	}
}

func bulkChangeFromRequest(req bulkChangeRequest) (reconcile.BulkChange, error) {
	date, err := parseBodyDate("date", req.Date)
	if err != nil {
		return reconcile.BulkChange{}, err
	}

	change := reconcile.BulkChange{
		Date:            date,
		SetAvailability: req.SetAvailability,
		SetOpen:         req.SetOpen,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.SetRate != nil {
		rate, err := decimal.NewFromString(*req.SetRate)
		if err != nil {
			return reconcile.BulkChange{}, pkgerrors.New(pkgerrors.CodeValidation, "must be a decimal amount").
				WithDetails(map[string]any{"field": "set_rate"})
		}
		change.SetRate = &rate
	}
	return change, nil
}
