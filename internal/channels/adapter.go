package channels

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// Capability names one operation an adapter can perform.
type Capability string

const (
	CapPullReservations Capability = "pull_reservations"
	CapPushAvailability Capability = "push_availability"
	CapPushRate         Capability = "push_rate"
	CapReportHealth     Capability = "report_health"
)

// CapabilitySet advertises what an adapter supports.
type CapabilitySet map[Capability]bool

// Has reports whether the capability is advertised.
func (s CapabilitySet) Has(c Capability) bool {
	return s[c]
}

// NewCapabilitySet builds a set from the listed capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Reservation is one booking as reported by a channel.
type Reservation struct {
	ExternalID string
	CheckIn    time.Time
	CheckOut   time.Time
	Units      int
	GuestName  string
	GuestEmail string
	Cancelled  bool
}

// AvailabilityPush carries an availability update for one date.
// TargetVersion is the ledger version the payload reflects; the channel
// rejects it as stale if it has already seen a newer one.
type AvailabilityPush struct {
	Date          time.Time
	Available     int
	TargetVersion int64
}

// RatePush carries a nightly rate update for one date.
type RatePush struct {
	Date          time.Time
	Rate          decimal.Decimal
	Currency      string
	TargetVersion int64
}

// Adapter is the contract every OTA integration implements. Calls must
// honor ctx deadlines; unsupported operations return a channel-rejected
// error and are guarded by the capability set.
type Adapter interface {
	Channel() enums.Channel
	Capabilities() CapabilitySet

	PullReservations(ctx context.Context, mapping models.ChannelMapping) ([]Reservation, error)
	PushAvailability(ctx context.Context, mapping models.ChannelMapping, push AvailabilityPush) error
	PushRate(ctx context.Context, mapping models.ChannelMapping, push RatePush) error
	// CancelReservation tells the channel a reservation lost a
	// double-booking tie-break. Requires the reservation API, so it is
	// guarded by CapPullReservations.
	CancelReservation(ctx context.Context, mapping models.ChannelMapping, externalID string) error
	Health(ctx context.Context) error
}
