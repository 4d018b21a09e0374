package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GraphicCard is the canonical catalog listing. Price is fixed-point and
// stock never goes below zero; the order engine is the only writer of stock
// outside the catalog admin endpoints.
type GraphicCard struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string          `gorm:"column:name;not null"`
	BrandID          uuid.UUID       `gorm:"column:brand_id;type:uuid;not null"`
	GPUModel         *string         `gorm:"column:gpu_model"`
	VRAMGB           *int            `gorm:"column:vram_gb"`
	Interface        *string         `gorm:"column:interface"`
	BoostClockMHz    *int            `gorm:"column:boost_clock_mhz"`
	CUDACores        *int            `gorm:"column:cuda_cores"`
	StreamProcessors *int            `gorm:"column:stream_processors"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock            int             `gorm:"column:stock;not null;default:0"`
	Description      *string         `gorm:"column:description"`
	ImageURL         *string         `gorm:"column:image_url"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *GraphicCard) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
