package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// Booking is a reservation pulled from (or pushed by) an OTA channel.
// The (channel, external_reservation_id) pair is unique so re-delivered
// webhooks and re-ingested feeds never create duplicates.
type Booking struct {
	ID                    uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomTypeID            uuid.UUID     `gorm:"column:room_type_id;type:uuid;not null;index" json:"room_type_id"`
	Channel               enums.Channel `gorm:"column:channel;not null;uniqueIndex:ux_bookings_channel_external_id" json:"channel"`
	ExternalReservationID string        `gorm:"column:external_reservation_id;not null;uniqueIndex:ux_bookings_channel_external_id" json:"external_reservation_id"`
	// Date range is half-open: [check_in, check_out).
	CheckIn    time.Time           `gorm:"column:check_in;type:date;not null;index" json:"check_in"`
	CheckOut   time.Time           `gorm:"column:check_out;type:date;not null;index" json:"check_out"`
	Units      int                 `gorm:"column:units;not null;default:1" json:"units"`
	GuestName  *string             `gorm:"column:guest_name" json:"guest_name,omitempty"`
	GuestEmail *string             `gorm:"column:guest_email" json:"guest_email,omitempty"`
	Status     enums.BookingStatus `gorm:"column:status;not null;default:confirmed" json:"status"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

// Nights returns every stay date covered by the booking.
func (b Booking) Nights() []time.Time {
	if !b.CheckOut.After(b.CheckIn) {
		return nil
	}
	var nights []time.Time
	for d := b.CheckIn; d.Before(b.CheckOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights
}
