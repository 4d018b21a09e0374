package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/pkg/db"
	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
	"github.com/gpuforge/gpuforge-backend/pkg/pagination"
)

// Service exposes catalog management operations. Reads are public, writes
// are restricted to administrators at the routing layer.
type Service interface {
	CreateManufacturer(ctx context.Context, input ManufacturerInput) (*ManufacturerDTO, error)
	GetManufacturer(ctx context.Context, id uuid.UUID) (*ManufacturerDTO, error)
	ListManufacturers(ctx context.Context) ([]ManufacturerDTO, error)
	UpdateManufacturer(ctx context.Context, id uuid.UUID, input ManufacturerInput) (*ManufacturerDTO, error)
	DeleteManufacturer(ctx context.Context, id uuid.UUID) error

	CreateBrand(ctx context.Context, input BrandInput) (*BrandDTO, error)
	GetBrand(ctx context.Context, id uuid.UUID) (*BrandDTO, error)
	ListBrands(ctx context.Context, manufacturerID *uuid.UUID) ([]BrandDTO, error)
	UpdateBrand(ctx context.Context, id uuid.UUID, input BrandInput) (*BrandDTO, error)
	DeleteBrand(ctx context.Context, id uuid.UUID) error

	CreateCard(ctx context.Context, input CardInput) (*GraphicCardDTO, error)
	GetCard(ctx context.Context, id uuid.UUID) (*GraphicCardDTO, error)
	ListCards(ctx context.Context, brandID *uuid.UUID, params pagination.Params) (*GraphicCardListResult, error)
	UpdateCard(ctx context.Context, id uuid.UUID, input CardInput) (*GraphicCardDTO, error)
	DeleteCard(ctx context.Context, id uuid.UUID) error
}

// ManufacturerInput holds the validated manufacturer payload.
type ManufacturerInput struct {
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// BrandInput holds the validated brand payload.
type BrandInput struct {
	Name           string    `json:"name" validate:"required,min=1,max=120"`
	ManufacturerID uuid.UUID `json:"manufacturer_id" validate:"required"`
}

// CardInput holds the validated graphic card payload. Price travels as a
// string and is parsed into a decimal to keep cents exact.
type CardInput struct {
	Name             string    `json:"name" validate:"required,min=1,max=200"`
	BrandID          uuid.UUID `json:"brand_id" validate:"required"`
	GPUModel         *string   `json:"gpu_model,omitempty"`
	VRAMGB           *int      `json:"vram_gb,omitempty" validate:"omitempty,gt=0"`
	Interface        *string   `json:"interface,omitempty"`
	BoostClockMHz    *int      `json:"boost_clock_mhz,omitempty" validate:"omitempty,gt=0"`
	CUDACores        *int      `json:"cuda_cores,omitempty" validate:"omitempty,gt=0"`
	StreamProcessors *int      `json:"stream_processors,omitempty" validate:"omitempty,gt=0"`
	Price            string    `json:"price" validate:"required"`
	Stock            int       `json:"stock" validate:"min=0"`
	Description      *string   `json:"description,omitempty"`
}

type service struct {
	repo *Repository
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

// --- manufacturers ---

func (s *service) CreateManufacturer(ctx context.Context, input ManufacturerInput) (*ManufacturerDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	m, err := s.repo.CreateManufacturer(ctx, &models.Manufacturer{Name: name})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "manufacturer name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create manufacturer")
	}
	return NewManufacturerDTO(m), nil
}

func (s *service) GetManufacturer(ctx context.Context, id uuid.UUID) (*ManufacturerDTO, error) {
	m, err := s.repo.FindManufacturer(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "manufacturer")
	}
	return NewManufacturerDTO(m), nil
}

func (s *service) ListManufacturers(ctx context.Context) ([]ManufacturerDTO, error) {
	rows, err := s.repo.ListManufacturers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list manufacturers")
	}
	out := make([]ManufacturerDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewManufacturerDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateManufacturer(ctx context.Context, id uuid.UUID, input ManufacturerInput) (*ManufacturerDTO, error) {
	m, err := s.repo.FindManufacturer(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "manufacturer")
	}
	m.Name = strings.TrimSpace(input.Name)
	if m.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	updated, err := s.repo.UpdateManufacturer(ctx, m)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "manufacturer name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update manufacturer")
	}
	return NewManufacturerDTO(updated), nil
}

func (s *service) DeleteManufacturer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindManufacturer(ctx, id); err != nil {
		return notFoundOrInternal(err, "manufacturer")
	}
	count, err := s.repo.CountBrandsForManufacturer(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count brands")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "manufacturer still has brands").
			WithDetails(map[string]any{"brands": count})
	}
	if err := s.repo.DeleteManufacturer(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete manufacturer")
	}
	return nil
}

// --- brands ---

func (s *service) CreateBrand(ctx context.Context, input BrandInput) (*BrandDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if _, err := s.repo.FindManufacturer(ctx, input.ManufacturerID); err != nil {
		return nil, notFoundOrInternal(err, "manufacturer")
	}
	b, err := s.repo.CreateBrand(ctx, &models.Brand{
		Name:           name,
		ManufacturerID: input.ManufacturerID,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "brand name already exists for manufacturer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create brand")
	}
	return NewBrandDTO(b), nil
}

func (s *service) GetBrand(ctx context.Context, id uuid.UUID) (*BrandDTO, error) {
	b, err := s.repo.FindBrand(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "brand")
	}
	return NewBrandDTO(b), nil
}

func (s *service) ListBrands(ctx context.Context, manufacturerID *uuid.UUID) ([]BrandDTO, error) {
	rows, err := s.repo.ListBrands(ctx, manufacturerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list brands")
	}
	out := make([]BrandDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewBrandDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateBrand(ctx context.Context, id uuid.UUID, input BrandInput) (*BrandDTO, error) {
	b, err := s.repo.FindBrand(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "brand")
	}
	if input.ManufacturerID != b.ManufacturerID {
		if _, err := s.repo.FindManufacturer(ctx, input.ManufacturerID); err != nil {
			return nil, notFoundOrInternal(err, "manufacturer")
		}
		b.ManufacturerID = input.ManufacturerID
	}
	b.Name = strings.TrimSpace(input.Name)
	if b.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	updated, err := s.repo.UpdateBrand(ctx, b)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "brand name already exists for manufacturer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update brand")
	}
	return NewBrandDTO(updated), nil
}

func (s *service) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindBrand(ctx, id); err != nil {
		return notFoundOrInternal(err, "brand")
	}
	count, err := s.repo.CountCardsForBrand(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cards")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "brand still has graphic cards").
			WithDetails(map[string]any{"graphic_cards": count})
	}
	if err := s.repo.DeleteBrand(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete brand")
	}
	return nil
}

// --- graphic cards ---

func (s *service) CreateCard(ctx context.Context, input CardInput) (*GraphicCardDTO, error) {
	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if _, err := s.repo.FindBrand(ctx, input.BrandID); err != nil {
		return nil, notFoundOrInternal(err, "brand")
	}

	card := &models.GraphicCard{
		Name:             strings.TrimSpace(input.Name),
		BrandID:          input.BrandID,
		GPUModel:         input.GPUModel,
		VRAMGB:           input.VRAMGB,
		Interface:        input.Interface,
		BoostClockMHz:    input.BoostClockMHz,
		CUDACores:        input.CUDACores,
		StreamProcessors: input.StreamProcessors,
		Price:            price,
		Stock:            input.Stock,
		Description:      input.Description,
	}
	created, err := s.repo.CreateCard(ctx, card)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create graphic card")
	}
	return NewGraphicCardDTO(created), nil
}

func (s *service) GetCard(ctx context.Context, id uuid.UUID) (*GraphicCardDTO, error) {
	c, err := s.repo.FindCard(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "graphic card")
	}
	return NewGraphicCardDTO(c), nil
}

func (s *service) ListCards(ctx context.Context, brandID *uuid.UUID, params pagination.Params) (*GraphicCardListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListCards(ctx, brandID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list graphic cards")
	}

	page := pagination.BuildPage(rows, params.Limit, func(c models.GraphicCard) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	items := make([]GraphicCardDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *NewGraphicCardDTO(&page.Items[i]))
	}
	return &GraphicCardListResult{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) UpdateCard(ctx context.Context, id uuid.UUID, input CardInput) (*GraphicCardDTO, error) {
	card, err := s.repo.FindCard(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "graphic card")
	}
	price, err := parsePrice(input.Price)
	if err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if input.BrandID != card.BrandID {
		if _, err := s.repo.FindBrand(ctx, input.BrandID); err != nil {
			return nil, notFoundOrInternal(err, "brand")
		}
		card.BrandID = input.BrandID
	}

	card.Name = strings.TrimSpace(input.Name)
	card.GPUModel = input.GPUModel
	card.VRAMGB = input.VRAMGB
	card.Interface = input.Interface
	card.BoostClockMHz = input.BoostClockMHz
	card.CUDACores = input.CUDACores
	card.StreamProcessors = input.StreamProcessors
	card.Price = price
	card.Stock = input.Stock
	card.Description = input.Description

	updated, err := s.repo.UpdateCard(ctx, card)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update graphic card")
	}
	return NewGraphicCardDTO(updated), nil
}

func (s *service) DeleteCard(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindCard(ctx, id); err != nil {
		return notFoundOrInternal(err, "graphic card")
	}
	count, err := s.repo.CountOrderItemsForCard(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count order items")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "graphic card is referenced by orders").
			WithDetails(map[string]any{"order_items": count})
	}
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete graphic card")
	}
	return nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal string")
	}
	if price.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if price.Exponent() < -2 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimal places")
	}
	return price, nil
}

func notFoundOrInternal(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup "+entity)
}
