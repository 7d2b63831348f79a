package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/internal/rooms"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

func TestBookingReceivedAppliesEvent(t *testing.T) {
	roomTypeID := uuid.New()
	booking := &models.Booking{ID: uuid.New(), Status: enums.BookingStatusConfirmed}
	var captured reconcile.BookingEvent
	svc := &testReconcileService{
		processBookingFn: func(ctx context.Context, event reconcile.BookingEvent) (*reconcile.BookingResult, error) {
			captured = event
			return &reconcile.BookingResult{Booking: booking, State: enums.EventStateApplied}, nil
		},
	}

	body := `{"channel":"booking_com","external_id":"BK-1","room_type_id":"` + roomTypeID.String() +
		`","check_in":"2026-09-10","check_out":"2026-09-12","units":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/booking-received", strings.NewReader(body))
	resp := httptest.NewRecorder()

	BookingReceived(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if captured.Channel != enums.ChannelBookingCom {
		t.Fatalf("unexpected channel %s", captured.Channel)
	}
	if captured.RoomTypeID != roomTypeID {
		t.Fatalf("unexpected room type %s", captured.RoomTypeID)
	}
	if !captured.CheckOut.After(captured.CheckIn) {
		t.Fatal("expected parsed stay range")
	}

	var envelope struct {
		Data bookingEventResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.BookingID != booking.ID.String() {
		t.Fatalf("unexpected booking id %s", envelope.Data.BookingID)
	}
	if envelope.Data.State != enums.EventStateApplied {
		t.Fatalf("unexpected state %s", envelope.Data.State)
	}
}

func TestBookingReceivedFlagsDedupe(t *testing.T) {
	svc := &testReconcileService{
		processBookingFn: func(ctx context.Context, event reconcile.BookingEvent) (*reconcile.BookingResult, error) {
			return &reconcile.BookingResult{
				Booking: &models.Booking{ID: uuid.New(), Status: enums.BookingStatusConfirmed},
				State:   enums.EventStateApplied,
				Deduped: true,
			}, nil
		},
	}

	body := `{"channel":"expedia","external_id":"BK-2","room_type_id":"` + uuid.NewString() +
		`","check_in":"2026-09-10","check_out":"2026-09-11","units":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/booking-received", strings.NewReader(body))
	resp := httptest.NewRecorder()

	BookingReceived(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)

	var envelope struct {
		Data bookingEventResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data.Deduped {
		t.Fatal("expected deduped flag")
	}
}

func TestBookingReceivedRejectsUnknownChannel(t *testing.T) {
	body := `{"channel":"nosuchota","external_id":"BK-3","room_type_id":"` + uuid.NewString() +
		`","check_in":"2026-09-10","check_out":"2026-09-11","units":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/booking-received", strings.NewReader(body))
	resp := httptest.NewRecorder()

	BookingReceived(&testReconcileService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}

func TestBookingReceivedRejectsMalformedDate(t *testing.T) {
	body := `{"channel":"airbnb","external_id":"BK-4","room_type_id":"` + uuid.NewString() +
		`","check_in":"next tuesday","check_out":"2026-09-11","units":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/booking-received", strings.NewReader(body))
	resp := httptest.NewRecorder()

	BookingReceived(&testReconcileService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}

func TestBookingCancelledForwardsEvent(t *testing.T) {
	var captured reconcile.CancellationEvent
	svc := &testReconcileService{
		processCancellationFn: func(ctx context.Context, event reconcile.CancellationEvent) (*reconcile.BookingResult, error) {
			captured = event
			return &reconcile.BookingResult{
				Booking: &models.Booking{ID: uuid.New(), Status: enums.BookingStatusCancelled},
				State:   enums.EventStateApplied,
			}, nil
		},
	}

	body := `{"channel":"agoda","external_id":"BK-5"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/booking-cancelled", strings.NewReader(body))
	resp := httptest.NewRecorder()

	BookingCancelled(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if captured.Channel != enums.ChannelAgoda || captured.ExternalID != "BK-5" {
		t.Fatalf("unexpected event %+v", captured)
	}
}

// singleMappingRepo satisfies rooms.Repository for handlers that only
// resolve one mapping.
type singleMappingRepo struct {
	mapping *models.ChannelMapping
}

func (r singleMappingRepo) WithTx(tx *gorm.DB) rooms.Repository { return r }

func (r singleMappingRepo) CreateRoomType(ctx context.Context, roomType *models.RoomType) error {
	return nil
}

func (r singleMappingRepo) GetRoomType(ctx context.Context, id uuid.UUID) (*models.RoomType, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r singleMappingRepo) ListRoomTypes(ctx context.Context) ([]models.RoomType, error) {
	return nil, nil
}

func (r singleMappingRepo) UpdateRoomType(ctx context.Context, roomType *models.RoomType) error {
	return nil
}

func (r singleMappingRepo) CreateMapping(ctx context.Context, mapping *models.ChannelMapping) error {
	return nil
}

func (r singleMappingRepo) GetMapping(ctx context.Context, roomTypeID uuid.UUID, channel enums.Channel) (*models.ChannelMapping, error) {
	if r.mapping == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.mapping, nil
}

func (r singleMappingRepo) ListMappings(ctx context.Context, roomTypeID uuid.UUID) ([]models.ChannelMapping, error) {
	return nil, nil
}

func (r singleMappingRepo) ListActiveMappingsByChannel(ctx context.Context, channel enums.Channel) ([]models.ChannelMapping, error) {
	return nil, nil
}

func (r singleMappingRepo) ListActiveFeedMappings(ctx context.Context) ([]models.ChannelMapping, error) {
	return nil, nil
}

func (r singleMappingRepo) SetMappingActive(ctx context.Context, mappingID uuid.UUID, active bool) (bool, error) {
	return false, nil
}

func TestICalSyncParsesFeed(t *testing.T) {
	roomTypeID := uuid.New()
	mapping := &models.ChannelMapping{
		ID:         uuid.New(),
		RoomTypeID: roomTypeID,
		Channel:    enums.ChannelAirbnb,
		IsActive:   true,
	}

	var captured []reconcile.FeedReservation
	svc := &testReconcileService{
		processFeedFn: func(ctx context.Context, m models.ChannelMapping, feed []reconcile.FeedReservation) (*reconcile.FeedResult, error) {
			if m.ID != mapping.ID {
				t.Fatalf("unexpected mapping %s", m.ID)
			}
			captured = feed
			return &reconcile.FeedResult{Added: len(feed)}, nil
		},
	}

	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:res-100@airbnb",
		"DTSTART;VALUE=DATE:20260901",
		"DTEND;VALUE=DATE:20260903",
		"SUMMARY:Reserved",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\n")

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/webhook/airbnb/ical-sync?room_type_id="+roomTypeID.String(), strings.NewReader(ics))
	req = addRouteParam(req, "channel", "airbnb")
	resp := httptest.NewRecorder()

	ICalSync(svc, singleMappingRepo{mapping: mapping}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if len(captured) != 1 {
		t.Fatalf("expected one reservation, got %d", len(captured))
	}
	if captured[0].ExternalID != "res-100@airbnb" {
		t.Fatalf("unexpected external id %s", captured[0].ExternalID)
	}
}

func TestICalSyncRequiresRoomType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/airbnb/ical-sync", strings.NewReader(""))
	req = addRouteParam(req, "channel", "airbnb")
	resp := httptest.NewRecorder()

	ICalSync(&testReconcileService{}, singleMappingRepo{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}

func TestICalSyncUnmappedRoomTypeIsNotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/webhook/expedia/ical-sync?room_type_id="+uuid.NewString(), strings.NewReader("BEGIN:VCALENDAR\nEND:VCALENDAR"))
	req = addRouteParam(req, "channel", "expedia")
	resp := httptest.NewRecorder()

	ICalSync(&testReconcileService{}, singleMappingRepo{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusNotFound)
}
