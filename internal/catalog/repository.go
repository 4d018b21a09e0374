package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	"github.com/gpuforge/gpuforge-backend/pkg/pagination"
)

// Repository wraps persistence for the catalog hierarchy.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// --- manufacturers ---

func (r *Repository) CreateManufacturer(ctx context.Context, m *models.Manufacturer) (*models.Manufacturer, error) {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) FindManufacturer(ctx context.Context, id uuid.UUID) (*models.Manufacturer, error) {
	var m models.Manufacturer
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) ListManufacturers(ctx context.Context) ([]models.Manufacturer, error) {
	var rows []models.Manufacturer
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateManufacturer(ctx context.Context, m *models.Manufacturer) (*models.Manufacturer, error) {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Repository) DeleteManufacturer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Manufacturer{}, "id = ?", id).Error
}

func (r *Repository) CountBrandsForManufacturer(ctx context.Context, manufacturerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Brand{}).
		Where("manufacturer_id = ?", manufacturerID).
		Count(&count).Error
	return count, err
}

// --- brands ---

func (r *Repository) CreateBrand(ctx context.Context, b *models.Brand) (*models.Brand, error) {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) FindBrand(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var b models.Brand
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListBrands(ctx context.Context, manufacturerID *uuid.UUID) ([]models.Brand, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if manufacturerID != nil {
		query = query.Where("manufacturer_id = ?", *manufacturerID)
	}
	var rows []models.Brand
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateBrand(ctx context.Context, b *models.Brand) (*models.Brand, error) {
	if err := r.db.WithContext(ctx).Save(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) DeleteBrand(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Brand{}, "id = ?", id).Error
}

func (r *Repository) CountCardsForBrand(ctx context.Context, brandID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GraphicCard{}).
		Where("brand_id = ?", brandID).
		Count(&count).Error
	return count, err
}

// --- graphic cards ---

func (r *Repository) CreateCard(ctx context.Context, c *models.GraphicCard) (*models.GraphicCard, error) {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) FindCard(ctx context.Context, id uuid.UUID) (*models.GraphicCard, error) {
	var c models.GraphicCard
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCards returns a cursor page ordered newest first. Callers pass the
// over-fetch limit from pagination.LimitWithBuffer.
func (r *Repository) ListCards(ctx context.Context, brandID *uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.GraphicCard, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)
	if brandID != nil {
		query = query.Where("brand_id = ?", *brandID)
	}
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.GraphicCard
	err := query.Find(&rows).Error
	return rows, err
}

func (r *Repository) UpdateCard(ctx context.Context, c *models.GraphicCard) (*models.GraphicCard, error) {
	if err := r.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Repository) DeleteCard(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.GraphicCard{}, "id = ?", id).Error
}

func (r *Repository) CountOrderItemsForCard(ctx context.Context, cardID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("graphic_card_id = ?", cardID).
		Count(&count).Error
	return count, err
}

func (r *Repository) UpdateCardImage(ctx context.Context, cardID uuid.UUID, imageURL string) error {
	return r.db.WithContext(ctx).
		Model(&models.GraphicCard{}).
		Where("id = ?", cardID).
		Update("image_url", imageURL).Error
}
