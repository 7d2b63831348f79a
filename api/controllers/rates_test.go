package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/internal/reconcile"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

func TestRateParityForwardsRequest(t *testing.T) {
	roomTypeID := uuid.New()
	var captured reconcile.ParityRequest
	svc := &testReconcileService{
		rateParityFn: func(ctx context.Context, req reconcile.ParityRequest) (*reconcile.ParityResult, error) {
			captured = req
			return &reconcile.ParityResult{
				Results: []reconcile.ParityChannelResult{
					{Channel: enums.ChannelBookingCom, Status: reconcile.ParityAccepted},
					{Channel: enums.ChannelAirbnb, Status: reconcile.ParityUnsupported},
				},
			}, nil
		},
	}

	body := `{"from":"2026-09-01","to":"2026-09-08","rate":"149.00"}`
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/rates/"+roomTypeID.String()+"/parity", strings.NewReader(body))
	req = addRouteParam(req, "roomTypeId", roomTypeID.String())
	resp := httptest.NewRecorder()

	RateParity(svc, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusOK)
	if captured.RoomTypeID != roomTypeID {
		t.Fatalf("unexpected room type %s", captured.RoomTypeID)
	}
	if !captured.Rate.Equal(mustDecimal(t, "149.00")) {
		t.Fatalf("unexpected rate %s", captured.Rate)
	}

	var envelope struct {
		Data reconcile.ParityResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Results) != 2 {
		t.Fatalf("expected 2 channel results, got %d", len(envelope.Data.Results))
	}
}

func TestRateParityRejectsBadRate(t *testing.T) {
	roomTypeID := uuid.New()
	body := `{"from":"2026-09-01","to":"2026-09-08","rate":"cheap"}`
	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/rates/"+roomTypeID.String()+"/parity", strings.NewReader(body))
	req = addRouteParam(req, "roomTypeId", roomTypeID.String())
	resp := httptest.NewRecorder()

	RateParity(&testReconcileService{}, testLogger())(resp, req)

	requireStatus(t, resp.Code, http.StatusBadRequest)
}
