package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// SyncDeadLetter captures sync tasks that exhausted their retry budget.
// They are surfaced through the health monitor instead of being dropped.
type SyncDeadLetter struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Channel       enums.Channel  `gorm:"column:channel;not null;index" json:"channel"`
	RoomTypeID    uuid.UUID      `gorm:"column:room_type_id;type:uuid;not null" json:"room_type_id"`
	Date          time.Time      `gorm:"column:date;type:date;not null" json:"date"`
	Kind          enums.TaskKind `gorm:"column:kind;not null" json:"kind"`
	TargetVersion int64          `gorm:"column:target_version;not null" json:"target_version"`
	AttemptCount  int            `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastError     *string        `gorm:"column:last_error" json:"last_error,omitempty"`
	FailedAt      time.Time      `gorm:"column:failed_at;autoCreateTime" json:"failed_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (SyncDeadLetter) TableName() string { return "sync_dead_letters" }
