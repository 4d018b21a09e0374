package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Manufacturer represents a chip maker (NVIDIA, AMD, Intel).
type Manufacturer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Brands    []Brand   `gorm:"foreignKey:ManufacturerID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Manufacturer) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
