package controllers

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return r
}

func requireStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("expected status %d got %d", want, got)
	}
}

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", value, err)
	}
	return d
}

// testReconcileService stubs the reconciler for handler tests.
type testReconcileService struct {
	processBookingFn      func(ctx context.Context, event reconcile.BookingEvent) (*reconcile.BookingResult, error)
	processCancellationFn func(ctx context.Context, event reconcile.CancellationEvent) (*reconcile.BookingResult, error)
	processFeedFn         func(ctx context.Context, mapping models.ChannelMapping, feed []reconcile.FeedReservation) (*reconcile.FeedResult, error)
	processBulkFn         func(ctx context.Context, roomTypeID uuid.UUID, changes []reconcile.BulkChange) ([]models.InventoryDay, error)
	resolveConflictFn     func(ctx context.Context, bookingID uuid.UUID, action reconcile.ResolveAction) (*reconcile.BookingResult, error)
	rateParityFn          func(ctx context.Context, req reconcile.ParityRequest) (*reconcile.ParityResult, error)
}

func (s *testReconcileService) ProcessBooking(ctx context.Context, event reconcile.BookingEvent) (*reconcile.BookingResult, error) {
	if s.processBookingFn != nil {
		return s.processBookingFn(ctx, event)
	}
	return &reconcile.BookingResult{}, nil
}

func (s *testReconcileService) ProcessCancellation(ctx context.Context, event reconcile.CancellationEvent) (*reconcile.BookingResult, error) {
	if s.processCancellationFn != nil {
		return s.processCancellationFn(ctx, event)
	}
	return &reconcile.BookingResult{}, nil
}

func (s *testReconcileService) ProcessFeed(ctx context.Context, mapping models.ChannelMapping, feed []reconcile.FeedReservation) (*reconcile.FeedResult, error) {
	if s.processFeedFn != nil {
		return s.processFeedFn(ctx, mapping, feed)
	}
	return &reconcile.FeedResult{}, nil
}

func (s *testReconcileService) ProcessBulk(ctx context.Context, roomTypeID uuid.UUID, changes []reconcile.BulkChange) ([]models.InventoryDay, error) {
	if s.processBulkFn != nil {
		return s.processBulkFn(ctx, roomTypeID, changes)
	}
	return nil, nil
}

func (s *testReconcileService) ResolveConflict(ctx context.Context, bookingID uuid.UUID, action reconcile.ResolveAction) (*reconcile.BookingResult, error) {
	if s.resolveConflictFn != nil {
		return s.resolveConflictFn(ctx, bookingID, action)
	}
	return &reconcile.BookingResult{}, nil
}

func (s *testReconcileService) RateParity(ctx context.Context, req reconcile.ParityRequest) (*reconcile.ParityResult, error) {
	if s.rateParityFn != nil {
		return s.rateParityFn(ctx, req)
	}
	return &reconcile.ParityResult{}, nil
}
