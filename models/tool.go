package models

import "time"

const ToolTable = "herramientas"

type Tool struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:100;not null" json:"name"` // unique via LOWER(name) index in db.Migrate
	Description *string    `json:"description,omitempty"`
	TypeID      *uint      `json:"type_id,omitempty"`
	BrandID     *uint      `json:"brand_id,omitempty"`
	Status      *string    `gorm:"size:50" json:"status,omitempty"`
	AcquiredAt  *time.Time `gorm:"type:date" json:"acquired_at,omitempty"`

	// Projection of the loan table: true iff no active loan references this
	// tool. Owned by the loan service once loans exist.
	Available bool `gorm:"not null;default:true" json:"available"`

	WarehouseID *uint     `json:"warehouse_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Tool) TableName() string { return ToolTable }
