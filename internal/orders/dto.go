package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
)

// PlaceOrderRequest is the checkout payload. Duplicate card lines are merged
// before stock is reserved.
type PlaceOrderRequest struct {
	Items []PlaceOrderItem `json:"items" validate:"required,min=1,dive"`
}

type PlaceOrderItem struct {
	GraphicCardID uuid.UUID `json:"graphic_card_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateStatusRequest moves an order along its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped completed cancelled"`
}

// OrderItemDTO is one order line with the price frozen at purchase time.
type OrderItemDTO struct {
	ID              uuid.UUID       `json:"id"`
	GraphicCardID   uuid.UUID       `json:"graphic_card_id"`
	GraphicCardName string          `json:"graphic_card_name,omitempty"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// OrderDTO is the public order payload.
type OrderDTO struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Username    string          `json:"username,omitempty"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemDTO  `json:"items"`
	OrderDate   time.Time       `json:"order_date"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewOrderDTO maps the persisted order. cardNames and username are optional
// enrichments keyed by graphic card id.
func NewOrderDTO(o *models.Order, cardNames map[uuid.UUID]string, username string) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:              item.ID,
			GraphicCardID:   item.GraphicCardID,
			GraphicCardName: cardNames[item.GraphicCardID],
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			LineTotal:       item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return &OrderDTO{
		ID:          o.ID,
		UserID:      o.UserID,
		Username:    username,
		Status:      o.Status.String(),
		TotalAmount: o.TotalAmount,
		Items:       items,
		OrderDate:   o.OrderDate,
		UpdatedAt:   o.UpdatedAt,
	}
}
