package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

const wireDateLayout = "2006-01-02"

// restAdapter speaks the JSON connectivity API the full-service OTAs share.
// booking.com, Expedia and Agoda all front the same shape; only the base
// URL and capability set differ.
type restAdapter struct {
	channel enums.Channel
	caps    CapabilitySet
	baseURL string
	client  *http.Client
}

func newRESTAdapter(channel enums.Channel, baseURL string, timeout time.Duration, caps CapabilitySet) *restAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &restAdapter{
		channel: channel,
		caps:    caps,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewBookingCom builds the booking.com adapter.
func NewBookingCom(baseURL string, timeout time.Duration) Adapter {
	return newRESTAdapter(enums.ChannelBookingCom, baseURL, timeout,
		NewCapabilitySet(CapPullReservations, CapPushAvailability, CapPushRate, CapReportHealth))
}

// NewExpedia builds the Expedia adapter.
func NewExpedia(baseURL string, timeout time.Duration) Adapter {
	return newRESTAdapter(enums.ChannelExpedia, baseURL, timeout,
		NewCapabilitySet(CapPullReservations, CapPushAvailability, CapPushRate, CapReportHealth))
}

// NewAgoda builds the Agoda adapter. Agoda's connectivity API takes rate
// and availability but exposes no health endpoint.
func NewAgoda(baseURL string, timeout time.Duration) Adapter {
	return newRESTAdapter(enums.ChannelAgoda, baseURL, timeout,
		NewCapabilitySet(CapPullReservations, CapPushAvailability, CapPushRate))
}

func (a *restAdapter) Channel() enums.Channel { return a.channel }

func (a *restAdapter) Capabilities() CapabilitySet { return a.caps }

type wireReservation struct {
	ReservationID string `json:"reservation_id"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Units         int    `json:"units"`
	GuestName     string `json:"guest_name"`
	GuestEmail    string `json:"guest_email"`
	Status        string `json:"status"`
}

func (a *restAdapter) PullReservations(ctx context.Context, mapping models.ChannelMapping) ([]Reservation, error) {
	if !a.caps.Has(CapPullReservations) {
		return nil, a.unsupported("pull reservations")
	}

	url := fmt.Sprintf("%s/rooms/%s/reservations", a.baseURL, mapping.OTARoomID)
	body, err := a.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var wire []wireReservation
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelRejected, err, "decode reservations").
			WithDetails(map[string]any{"channel": string(a.channel)})
	}

	out := make([]Reservation, 0, len(wire))
	for _, w := range wire {
		checkIn, err := time.Parse(wireDateLayout, w.CheckIn)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeChannelRejected, err, "decode reservation check-in")
		}
		checkOut, err := time.Parse(wireDateLayout, w.CheckOut)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeChannelRejected, err, "decode reservation check-out")
		}
		units := w.Units
		if units <= 0 {
			units = 1
		}
		out = append(out, Reservation{
			ExternalID: w.ReservationID,
			CheckIn:    checkIn,
			CheckOut:   checkOut,
			Units:      units,
			GuestName:  w.GuestName,
			GuestEmail: w.GuestEmail,
			Cancelled:  w.Status == "cancelled",
		})
	}
	return out, nil
}

func (a *restAdapter) PushAvailability(ctx context.Context, mapping models.ChannelMapping, push AvailabilityPush) error {
	if !a.caps.Has(CapPushAvailability) {
		return a.unsupported("push availability")
	}

	payload := map[string]any{
		"date":      push.Date.Format(wireDateLayout),
		"available": push.Available,
		"version":   push.TargetVersion,
	}
	url := fmt.Sprintf("%s/rooms/%s/availability", a.baseURL, mapping.OTARoomID)
	_, err := a.do(ctx, http.MethodPost, url, payload)
	return err
}

func (a *restAdapter) PushRate(ctx context.Context, mapping models.ChannelMapping, push RatePush) error {
	if !a.caps.Has(CapPushRate) {
		return a.unsupported("push rate")
	}

	payload := map[string]any{
		"date":     push.Date.Format(wireDateLayout),
		"rate":     push.Rate.String(),
		"currency": push.Currency,
		"version":  push.TargetVersion,
	}
	url := fmt.Sprintf("%s/rooms/%s/rate", a.baseURL, mapping.OTARoomID)
	_, err := a.do(ctx, http.MethodPost, url, payload)
	return err
}

func (a *restAdapter) CancelReservation(ctx context.Context, mapping models.ChannelMapping, externalID string) error {
	if !a.caps.Has(CapPullReservations) {
		return a.unsupported("cancel reservation")
	}
	if externalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external reservation id required")
	}
	url := fmt.Sprintf("%s/rooms/%s/reservations/%s", a.baseURL, mapping.OTARoomID, externalID)
	_, err := a.do(ctx, http.MethodDelete, url, nil)
	return err
}

func (a *restAdapter) Health(ctx context.Context) error {
	if !a.caps.Has(CapReportHealth) {
		return a.unsupported("health probe")
	}
	_, err := a.do(ctx, http.MethodGet, a.baseURL+"/health", nil)
	return err
}

func (a *restAdapter) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode channel payload")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build channel request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelUnavailable, err, "call channel").
			WithDetails(map[string]any{"channel": string(a.channel)})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeChannelUnavailable, err, "read channel response")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusConflict:
		// Channel already saw a newer version for this key.
		return nil, pkgerrors.New(pkgerrors.CodeStaleVersion, "channel reports newer version").
			WithDetails(map[string]any{"channel": string(a.channel)})
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, pkgerrors.New(pkgerrors.CodeChannelRejected, "channel rejected request").
			WithDetails(map[string]any{"channel": string(a.channel), "status": resp.StatusCode})
	default:
		return nil, pkgerrors.New(pkgerrors.CodeChannelUnavailable, "channel unavailable").
			WithDetails(map[string]any{"channel": string(a.channel), "status": resp.StatusCode})
	}
}

func (a *restAdapter) unsupported(op string) error {
	return pkgerrors.New(pkgerrors.CodeChannelRejected, "operation not supported by channel").
		WithDetails(map[string]any{"channel": string(a.channel), "operation": op})
}
