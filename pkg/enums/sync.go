package enums

import "fmt"

// CircuitState models the per-channel dispatch breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

func (s CircuitState) String() string {
	return string(s)
}

// TaskKind classifies an outbound sync task.
type TaskKind string

const (
	TaskKindAvailability TaskKind = "availability"
	TaskKindRate         TaskKind = "rate"
	// TaskKindCancellation ships a cancellation back to the losing channel
	// of a resolved double-booking.
	TaskKindCancellation TaskKind = "cancellation"
)

var validTaskKinds = []TaskKind{
	TaskKindAvailability,
	TaskKindRate,
	TaskKindCancellation,
}

// IsValid reports whether the value matches a known task kind.
func (k TaskKind) IsValid() bool {
	for _, candidate := range validTaskKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTaskKind converts raw input into a TaskKind.
func ParseTaskKind(value string) (TaskKind, error) {
	for _, candidate := range validTaskKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task kind %q", value)
}

// EventState tracks an inbound reconciliation event through its state
// machine: RECEIVED -> VALIDATED -> {APPLIED | REJECTED | CONFLICT_QUEUED}.
type EventState string

const (
	EventStateReceived       EventState = "received"
	EventStateValidated      EventState = "validated"
	EventStateApplied        EventState = "applied"
	EventStateRejected       EventState = "rejected"
	EventStateConflictQueued EventState = "conflict_queued"
)

func (s EventState) String() string {
	return string(s)
}
