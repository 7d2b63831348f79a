package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/internal/bookings"
	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

type testBookingsService struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	listFn func(ctx context.Context, params bookings.ListParams) (*bookings.ListResult, error)
}

func (s *testBookingsService) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
}

func (s *testBookingsService) List(ctx context.Context, params bookings.ListParams) (*bookings.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &bookings.ListResult{}, nil
}

func (s *testBookingsService) ListConflicts(ctx context.Context, roomTypeID *uuid.UUID) ([]models.Booking, error) {
	return nil, nil
}

func TestBookingListAppliesFilters(t *testing.T) {
	roomTypeID := uuid.New()
	var captured bookings.ListParams
	svc := &testBookingsService{
		listFn: func(ctx context.Context, params bookings.ListParams) (*bookings.ListResult, error) {
			captured = params
			return &bookings.ListResult{Items: []models.Booking{{ID: uuid.New()}}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/bookings?room_type_id="+roomTypeID.String()+"&channel=booking_com&status=conflict&limit=25", nil)
	resp := httptest.NewRecorder()

	BookingList(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if captured.RoomTypeID == nil || *captured.RoomTypeID != roomTypeID {
		t.Fatal("expected room type filter")
	}
	if captured.Channel == nil || *captured.Channel != enums.ChannelBookingCom {
		t.Fatal("expected channel filter")
	}
	if captured.Status == nil || *captured.Status != enums.BookingStatusConflict {
		t.Fatal("expected status filter")
	}
	if captured.Limit != 25 {
		t.Fatalf("unexpected limit %d", captured.Limit)
	}
}

func TestBookingListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?status=no_show", nil)
	resp := httptest.NewRecorder()

	BookingList(&testBookingsService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}

func TestBookingDetailNotFound(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+id.String(), nil)
	req = addRouteParam(req, "bookingId", id.String())
	resp := httptest.NewRecorder()

	BookingDetail(&testBookingsService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusNotFound)
}

func TestBookingResolveConfirm(t *testing.T) {
	id := uuid.New()
	var capturedAction reconcile.ResolveAction
	svc := &testReconcileService{
		resolveConflictFn: func(ctx context.Context, bookingID uuid.UUID, action reconcile.ResolveAction) (*reconcile.BookingResult, error) {
			if bookingID != id {
				t.Fatalf("unexpected booking %s", bookingID)
			}
			capturedAction = action
			return &reconcile.BookingResult{
				Booking: &models.Booking{ID: id, Status: enums.BookingStatusConfirmed},
				State:   enums.EventStateApplied,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/bookings/"+id.String()+"/resolve", strings.NewReader(`{"action":"confirm"}`))
	req = addRouteParam(req, "bookingId", id.String())
	resp := httptest.NewRecorder()

	BookingResolve(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if capturedAction != reconcile.ResolveConfirm {
		t.Fatalf("unexpected action %s", capturedAction)
	}
}

func TestBookingResolveRejectsUnknownAction(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/bookings/"+id.String()+"/resolve", strings.NewReader(`{"action":"shrug"}`))
	req = addRouteParam(req, "bookingId", id.String())
	resp := httptest.NewRecorder()

	BookingResolve(&testReconcileService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}

func TestBookingResolveCapacityConflict(t *testing.T) {
	id := uuid.New()
	svc := &testReconcileService{
		resolveConflictFn: func(ctx context.Context, bookingID uuid.UUID, action reconcile.ResolveAction) (*reconcile.BookingResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeCapacityConflict, "not enough units to confirm booking")
		},
	}

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/bookings/"+id.String()+"/resolve", strings.NewReader(`{"action":"confirm"}`))
	req = addRouteParam(req, "bookingId", id.String())
	resp := httptest.NewRecorder()

	BookingResolve(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusConflict)
}
