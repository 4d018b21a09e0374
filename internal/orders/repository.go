package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *Repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *Repository) FindOrderWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("order_date DESC").
		Find(&out).Error
	return out, err
}

func (r *Repository) ListAll(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("order_date DESC").
		Find(&out).Error
	return out, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Order{}).Error
}

// FindCards loads the referenced cards in one query. Callers compare the
// result against the requested ids to detect unknown products.
func (r *Repository) FindCards(ctx context.Context, ids []uuid.UUID) ([]models.GraphicCard, error) {
	var out []models.GraphicCard
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error
	return out, err
}

// DecrementStockIfAvailable reserves stock with a guarded update so two
// concurrent orders can never both take the last unit. Returns false when the
// remaining stock was below the requested quantity.
func (r *Repository) DecrementStockIfAvailable(ctx context.Context, cardID uuid.UUID, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.GraphicCard{}).
		Where("id = ? AND stock >= ?", cardID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RestockItems returns reserved units to the catalog, used on cancellation.
func (r *Repository) RestockItems(ctx context.Context, items []models.OrderItem) error {
	for _, item := range items {
		err := r.db.WithContext(ctx).
			Model(&models.GraphicCard{}).
			Where("id = ?", item.GraphicCardID).
			Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// CardNames resolves display names for the given card ids.
func (r *Repository) CardNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]string{}, nil
	}
	var rows []models.GraphicCard
	err := r.db.WithContext(ctx).
		Select("id", "name").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

func (r *Repository) CurrentStock(ctx context.Context, cardID uuid.UUID) (int, error) {
	var card models.GraphicCard
	err := r.db.WithContext(ctx).
		Select("id", "stock").
		First(&card, "id = ?", cardID).Error
	if err != nil {
		return 0, err
	}
	return card.Stock, nil
}
