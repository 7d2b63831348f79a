package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidortega/channelsync-backend/pkg/enums"
)

// InventoryDay is the materialized ledger state for one (room type, date)
// key. Version increases strictly on every mutation and backs the
// optimistic-concurrency check.
type InventoryDay struct {
	RoomTypeID     uuid.UUID       `gorm:"column:room_type_id;type:uuid;primaryKey" json:"room_type_id"`
	Date           time.Time       `gorm:"column:date;type:date;primaryKey" json:"date"`
	AvailableUnits int             `gorm:"column:available_units;not null;default:0" json:"available_units"`
	Rate           decimal.Decimal `gorm:"column:rate;type:numeric(10,2);not null" json:"rate"`
	// IsOpen=false makes the day sync as zero availability without
	// destroying the stored count.
	IsOpen         bool                 `gorm:"column:is_open;not null;default:true" json:"is_open"`
	Version        int64                `gorm:"column:version;not null;default:0" json:"version"`
	LastModifiedBy enums.MutationSource `gorm:"column:last_modified_by;not null" json:"last_modified_by"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InventoryDay) TableName() string { return "inventory_days" }

// EffectiveAvailability is what gets pushed to channels: closed days sync
// as zero regardless of the stored count.
func (d InventoryDay) EffectiveAvailability() int {
	if !d.IsOpen {
		return 0
	}
	return d.AvailableUnits
}
