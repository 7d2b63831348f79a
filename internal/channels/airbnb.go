package channels

import (
	"context"
	"time"

	"github.com/davidortega/channelsync-backend/internal/ical"
	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// airbnbAdapter syncs through calendar feeds: reservations arrive by
// polling the listing's iCal URL, availability goes out through the
// calendar API. There is no rate push.
type airbnbAdapter struct {
	rest    *restAdapter
	fetcher *ical.Fetcher
}

// NewAirbnb builds the Airbnb adapter.
func NewAirbnb(baseURL string, timeout time.Duration) Adapter {
	return &airbnbAdapter{
		rest: newRESTAdapter(enums.ChannelAirbnb, baseURL, timeout,
			NewCapabilitySet(CapPullReservations, CapPushAvailability, CapReportHealth)),
		fetcher: ical.NewFetcher(timeout),
	}
}

func (a *airbnbAdapter) Channel() enums.Channel { return enums.ChannelAirbnb }

func (a *airbnbAdapter) Capabilities() CapabilitySet { return a.rest.caps }

func (a *airbnbAdapter) PullReservations(ctx context.Context, mapping models.ChannelMapping) ([]Reservation, error) {
	if mapping.ICalURL == nil || *mapping.ICalURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mapping has no calendar feed url").
			WithDetails(map[string]any{"mapping_id": mapping.ID})
	}

	ranges, err := a.fetcher.Fetch(ctx, *mapping.ICalURL)
	if err != nil {
		return nil, err
	}

	out := make([]Reservation, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, Reservation{
			ExternalID: r.UID,
			CheckIn:    r.Start,
			CheckOut:   r.End,
			Units:      1,
			GuestName:  r.Summary,
		})
	}
	return out, nil
}

func (a *airbnbAdapter) PushAvailability(ctx context.Context, mapping models.ChannelMapping, push AvailabilityPush) error {
	return a.rest.PushAvailability(ctx, mapping, push)
}

func (a *airbnbAdapter) PushRate(ctx context.Context, mapping models.ChannelMapping, push RatePush) error {
	return a.rest.unsupported("push rate")
}

func (a *airbnbAdapter) CancelReservation(ctx context.Context, mapping models.ChannelMapping, externalID string) error {
	// Calendar feeds are one-way; a blocked range can only disappear from
	// the host side.
	return a.rest.unsupported("cancel reservation")
}

func (a *airbnbAdapter) Health(ctx context.Context) error {
	return a.rest.Health(ctx)
}
