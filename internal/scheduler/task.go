package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/pkg/enums"
	pkgerrors "github.com/davidortega/channelsync-backend/pkg/errors"
)

// Task is one outbound unit of work for a channel. Availability and rate
// tasks carry the ledger version they reflect so channels can reject stale
// payloads; cancellation tasks carry the external reservation id instead.
type Task struct {
	Channel       enums.Channel
	RoomTypeID    uuid.UUID
	Date          time.Time
	Kind          enums.TaskKind
	TargetVersion int64

	Available int
	Rate      decimal.Decimal
	Currency  string

	ExternalID string

	// Attempts counts dispatch failures so far.
	Attempts int
	// NotBefore gates retries during backoff.
	NotBefore time.Time
}

// taskKey identifies the queue slot a task coalesces into. ExternalID keeps
// distinct cancellations from collapsing into each other.
type taskKey struct {
	roomTypeID uuid.UUID
	date       time.Time
	kind       enums.TaskKind
	externalID string
}

func (t Task) key() taskKey {
	return taskKey{
		roomTypeID: t.RoomTypeID,
		date:       t.Date,
		kind:       t.Kind,
		externalID: t.ExternalID,
	}
}

func (t Task) validate() error {
	if !t.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid task channel").
			WithDetails(map[string]any{"channel": string(t.Channel)})
	}
	if !t.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid task kind").
			WithDetails(map[string]any{"kind": string(t.Kind)})
	}
	if t.RoomTypeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "task room type id required")
	}
	if t.Date.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "task date required")
	}

	switch t.Kind {
	case enums.TaskKindAvailability:
		if t.Available < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "task availability must not be negative")
		}
	case enums.TaskKindRate:
		if t.Rate.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "task rate must not be negative")
		}
		if t.Currency == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "task currency required")
		}
	case enums.TaskKindCancellation:
		if t.ExternalID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "cancellation task requires external id")
		}
	}
	return nil
}
