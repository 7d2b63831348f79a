package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoomType is the unit of inventory: a bookable category with a physical
// capacity ceiling. Capacity edits are rare and admin-only.
type RoomType struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string          `gorm:"column:name;not null" json:"name"`
	Description *string         `gorm:"column:description" json:"description,omitempty"`
	TotalUnits  int             `gorm:"column:total_units;not null" json:"total_units"`
	BaseRate    decimal.Decimal `gorm:"column:base_rate;type:numeric(10,2);not null" json:"base_rate"`
	Currency    string          `gorm:"column:currency;not null;default:USD" json:"currency"`
	MaxGuests   int             `gorm:"column:max_guests;not null;default:2" json:"max_guests"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (RoomType) TableName() string { return "room_types" }
