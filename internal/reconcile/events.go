package reconcile

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/pkg/db/models"
	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// BookingEvent is an inbound reservation notification from a channel.
type BookingEvent struct {
	Channel    enums.Channel
	ExternalID string
	RoomTypeID uuid.UUID
	// Stay range is half-open: [CheckIn, CheckOut).
	CheckIn    time.Time
	CheckOut   time.Time
	Units      int
	GuestName  *string
	GuestEmail *string
}

func (e BookingEvent) validate() error {
	if !e.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid channel").
			WithDetails(map[string]any{"channel": string(e.Channel)})
	}
	if e.ExternalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external reservation id required")
	}
	if e.RoomTypeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "room type id required")
	}
	if e.Units <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units must be positive")
	}
	if !e.CheckOut.After(e.CheckIn) {
		return pkgerrors.New(pkgerrors.CodeValidation, "check-out must be after check-in")
	}
	return nil
}

// CancellationEvent is an inbound cancellation notification.
type CancellationEvent struct {
	Channel    enums.Channel
	ExternalID string
}

func (e CancellationEvent) validate() error {
	if !e.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid channel").
			WithDetails(map[string]any{"channel": string(e.Channel)})
	}
	if e.ExternalID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "external reservation id required")
	}
	return nil
}

// BookingResult reports what an inbound event did to local state.
type BookingResult struct {
	Booking *models.Booking
	State   enums.EventState
	// Days carries the inventory days the event touched, with their new
	// versions. Empty for deduped or no-op events.
	Days []models.InventoryDay
	// Deduped is set when the event had already been ingested.
	Deduped bool
}

// FeedReservation is one blocked range reported by a calendar feed.
type FeedReservation struct {
	ExternalID string
	CheckIn    time.Time
	CheckOut   time.Time
	Units      int
	Cancelled  bool
}

// FeedResult summarizes one feed ingestion pass.
type FeedResult struct {
	Added     int `json:"added"`
	Cancelled int `json:"cancelled"`
	Unchanged int `json:"unchanged"`
	Conflicts int `json:"conflicts"`
}

// BulkChange is one manual dashboard edit to a single date.
type BulkChange struct {
	Date            time.Time
	SetAvailability *int
	SetRate         *decimal.Decimal
	SetOpen         *bool
	ExpectedVersion *int64
}

// ResolveAction is the operator's verdict on a conflicted booking.
type ResolveAction string

const (
	ResolveConfirm ResolveAction = "confirm"
	ResolveCancel  ResolveAction = "cancel"
)

// ParseResolveAction converts raw input into a ResolveAction.
func ParseResolveAction(value string) (ResolveAction, error) {
	switch ResolveAction(value) {
	case ResolveConfirm, ResolveCancel:
		return ResolveAction(value), nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid resolve action").
		WithDetails(map[string]any{"action": value})
}
