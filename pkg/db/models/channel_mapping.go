package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// ChannelMapping links a local room type to the identifier an OTA knows it
// by. A room type syncs to a channel only while a mapping is active.
type ChannelMapping struct {
	ID            uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomTypeID    uuid.UUID     `gorm:"column:room_type_id;type:uuid;not null;uniqueIndex:ux_channel_mappings_room_channel" json:"room_type_id"`
	Channel       enums.Channel `gorm:"column:channel;not null;uniqueIndex:ux_channel_mappings_room_channel" json:"channel"`
	OTARoomID     string        `gorm:"column:ota_room_id;not null" json:"ota_room_id"`
	OTAPropertyID *string       `gorm:"column:ota_property_id" json:"ota_property_id,omitempty"`
	// ICalURL is set for feed-based channels whose reservations arrive via
	// calendar polling rather than webhooks.
	ICalURL   *string   `gorm:"column:ical_url" json:"ical_url,omitempty"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ChannelMapping) TableName() string { return "channel_mappings" }
