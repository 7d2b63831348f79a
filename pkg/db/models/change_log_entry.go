package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// ChangeLogEntry is one row of the append-only ledger change log. Entries
// are written in the same transaction as the materialized InventoryDay
// update, so replaying the log in seq order rebuilds the ledger exactly.
type ChangeLogEntry struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq        int64                `gorm:"column:seq;->" json:"seq"`
	RoomTypeID uuid.UUID            `gorm:"column:room_type_id;type:uuid;not null;index:ix_change_log_key" json:"room_type_id"`
	Date       time.Time            `gorm:"column:date;type:date;not null;index:ix_change_log_key" json:"date"`
	ChangeType enums.ChangeType     `gorm:"column:change_type;not null" json:"change_type"`
	Payload    json.RawMessage      `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	Version    int64                `gorm:"column:version;not null" json:"version"`
	Source     enums.MutationSource `gorm:"column:source;not null" json:"source"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (ChangeLogEntry) TableName() string { return "change_log" }
