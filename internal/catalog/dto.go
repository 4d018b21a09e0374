package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
)

// ManufacturerDTO is the public manufacturer payload.
type ManufacturerDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BrandDTO is the public brand payload.
type BrandDTO struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ManufacturerID uuid.UUID `json:"manufacturer_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GraphicCardDTO is the public listing payload. Price serializes as a
// decimal string so clients never see float artifacts.
type GraphicCardDTO struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	BrandID          uuid.UUID       `json:"brand_id"`
	GPUModel         *string         `json:"gpu_model,omitempty"`
	VRAMGB           *int            `json:"vram_gb,omitempty"`
	Interface        *string         `json:"interface,omitempty"`
	BoostClockMHz    *int            `json:"boost_clock_mhz,omitempty"`
	CUDACores        *int            `json:"cuda_cores,omitempty"`
	StreamProcessors *int            `json:"stream_processors,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	Description      *string         `json:"description,omitempty"`
	ImageURL         *string         `json:"image_url,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// GraphicCardListResult is one page of cards plus the next cursor.
type GraphicCardListResult struct {
	Items      []GraphicCardDTO `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func NewManufacturerDTO(m *models.Manufacturer) *ManufacturerDTO {
	if m == nil {
		return nil
	}
	return &ManufacturerDTO{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func NewBrandDTO(b *models.Brand) *BrandDTO {
	if b == nil {
		return nil
	}
	return &BrandDTO{
		ID:             b.ID,
		Name:           b.Name,
		ManufacturerID: b.ManufacturerID,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func NewGraphicCardDTO(c *models.GraphicCard) *GraphicCardDTO {
	if c == nil {
		return nil
	}
	return &GraphicCardDTO{
		ID:               c.ID,
		Name:             c.Name,
		BrandID:          c.BrandID,
		GPUModel:         c.GPUModel,
		VRAMGB:           c.VRAMGB,
		Interface:        c.Interface,
		BoostClockMHz:    c.BoostClockMHz,
		CUDACores:        c.CUDACores,
		StreamProcessors: c.StreamProcessors,
		Price:            c.Price,
		Stock:            c.Stock,
		Description:      c.Description,
		ImageURL:         c.ImageURL,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
