package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Brand represents a board partner (ASUS, MSI, Gigabyte) tied to a manufacturer.
type Brand struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string    `gorm:"column:name;not null"`
	ManufacturerID uuid.UUID `gorm:"column:manufacturer_id;type:uuid;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
