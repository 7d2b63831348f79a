package enums

import "fmt"

// BookingStatus tracks the lifecycle of an OTA reservation.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusConflict marks the losing side of a double-booking,
	// awaiting auto-cancel dispatch or operator resolution.
	BookingStatusConflict BookingStatus = "conflict"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusConfirmed,
	BookingStatusCancelled,
	BookingStatusConflict,
}

// IsValid reports whether the value matches a known booking status.
func (s BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
