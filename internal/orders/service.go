package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gpuforge/gpuforge-backend/internal/users"
	"github.com/gpuforge/gpuforge-backend/pkg/db/models"
	"github.com/gpuforge/gpuforge-backend/pkg/enums"
	pkgerrors "github.com/gpuforge/gpuforge-backend/pkg/errors"
	"github.com/gpuforge/gpuforge-backend/pkg/logger"
	"github.com/gpuforge/gpuforge-backend/pkg/outbox"
)

// Actor identifies the authenticated caller for ownership checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) isAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// OrderEventData is the outbox payload for order lifecycle events. It carries
// everything the dispatcher needs so delivery never re-reads mutable state.
type OrderEventData struct {
	OrderID       uuid.UUID        `json:"order_id"`
	UserID        uuid.UUID        `json:"user_id"`
	Username      string           `json:"username"`
	CustomerEmail string           `json:"customer_email"`
	Status        string           `json:"status"`
	TotalAmount   string           `json:"total_amount"`
	Items         []OrderEventItem `json:"items"`
}

type OrderEventItem struct {
	GraphicCardID uuid.UUID `json:"graphic_card_id"`
	Name          string    `json:"name"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
	LineTotal     string    `json:"line_total"`
}

// Service owns order placement and lifecycle management.
type Service interface {
	PlaceOrder(ctx context.Context, actor Actor, req PlaceOrderRequest) (*OrderDTO, error)
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, actor Actor) ([]OrderDTO, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error)
	DeleteOrder(ctx context.Context, actor Actor, orderID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UsernamesByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	DB     txRunner
	Repo   *Repository
	Users  userLookup
	Outbox eventEmitter
	Logger *logger.Logger
}

type service struct {
	db     txRunner
	repo   *Repository
	users  userLookup
	outbox eventEmitter
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:     params.DB,
		repo:   params.Repo,
		users:  params.Users,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

// PlaceOrder reserves stock, snapshots prices and persists the order in one
// transaction. The confirmation event lands in the outbox inside the same
// transaction, so it exists exactly when the order does.
func (s *service) PlaceOrder(ctx context.Context, actor Actor, req PlaceOrderRequest) (*OrderDTO, error) {
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	var placed *models.Order
	var eventData OrderEventData
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.GraphicCardID)
		}
		cards, err := repo.FindCards(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load graphic cards")
		}
		cardByID := make(map[uuid.UUID]models.GraphicCard, len(cards))
		for _, card := range cards {
			cardByID[card.ID] = card
		}
		for _, line := range lines {
			if _, ok := cardByID[line.GraphicCardID]; !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "graphic card not found").
					WithDetails(map[string]any{"product_id": line.GraphicCardID})
			}
		}

		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))
		eventItems := make([]OrderEventItem, 0, len(lines))
		for _, line := range lines {
			card := cardByID[line.GraphicCardID]
			ok, err := repo.DecrementStockIfAvailable(ctx, card.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
			}
			if !ok {
				available, stockErr := repo.CurrentStock(ctx, card.ID)
				if stockErr != nil {
					available = 0
				}
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("insufficient stock for %s", card.Name)).
					WithDetails(map[string]any{
						"product_id": card.ID,
						"requested":  line.Quantity,
						"available":  available,
					})
			}

			lineTotal := card.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(lineTotal)
			items = append(items, models.OrderItem{
				GraphicCardID:   card.ID,
				Quantity:        line.Quantity,
				PriceAtPurchase: card.Price,
			})
			eventItems = append(eventItems, OrderEventItem{
				GraphicCardID: card.ID,
				Name:          card.Name,
				Quantity:      line.Quantity,
				UnitPrice:     card.Price.StringFixed(2),
				LineTotal:     lineTotal.StringFixed(2),
			})
		}

		order := &models.Order{
			UserID:      actor.UserID,
			TotalAmount: total,
			Status:      enums.OrderStatusPending,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}
		order.Items = items

		eventData = OrderEventData{
			OrderID:       order.ID,
			UserID:        actor.UserID,
			Username:      user.Username,
			CustomerEmail: user.Email,
			Status:        order.Status.String(),
			TotalAmount:   total.StringFixed(2),
			Items:         eventItems,
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventOrderConfirmation,
			AggregateID: order.ID,
			Actor:       &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data:        eventData,
			Version:     1,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue confirmation event")
		}

		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     placed.ID.String(),
		"user_id":      actor.UserID.String(),
		"total_amount": placed.TotalAmount.StringFixed(2),
		"item_count":   len(placed.Items),
	})
	s.logg.Info(logCtx, "order placed")

	return s.toDTO(ctx, placed, user.Username), nil
}

func (s *service) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrderWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != actor.UserID && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return s.toDTO(ctx, order, s.usernameFor(ctx, order.UserID)), nil
}

// ListOrders returns the caller's orders, or every order for administrators.
// An empty result is reported as not found.
func (s *service) ListOrders(ctx context.Context, actor Actor) ([]OrderDTO, error) {
	var rows []models.Order
	var err error
	if actor.isAdmin() {
		rows, err = s.repo.ListAll(ctx)
	} else {
		rows, err = s.repo.ListForUser(ctx, actor.UserID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders found")
	}

	userIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for i := range rows {
		if _, ok := seen[rows[i].UserID]; ok {
			continue
		}
		seen[rows[i].UserID] = struct{}{}
		userIDs = append(userIDs, rows[i].UserID)
	}
	usernames, err := s.users.UsernamesByID(ctx, userIDs)
	if err != nil {
		usernames = map[uuid.UUID]string{}
	}

	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *s.toDTO(ctx, &rows[i], usernames[rows[i].UserID]))
	}
	return out, nil
}

// UpdateStatus moves the order along the lifecycle graph. Cancelling a
// not-yet-shipped order returns its reserved stock. Moving to processing
// marks the order paid and queues the payment notice.
func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error) {
	next, err := enums.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	var updated *models.Order
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderWithItems(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, next)).
				WithDetails(map[string]any{"from": order.Status, "to": next})
		}

		if next == enums.OrderStatusCancelled {
			if err := repo.RestockItems(ctx, order.Items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock items")
			}
		}
		if err := repo.UpdateStatus(ctx, orderID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update status")
		}
		order.Status = next

		if next == enums.OrderStatusProcessing {
			// owner lookup must ride the open transaction's connection
			user, err := users.NewRepository(tx).FindByID(ctx, order.UserID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order owner")
			}
			eventItems, err := s.eventItemsFor(ctx, repo, order.Items)
			if err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:   enums.EventOrderPaid,
				AggregateID: order.ID,
				Actor:       &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
				Data: OrderEventData{
					OrderID:       order.ID,
					UserID:        order.UserID,
					Username:      user.Username,
					CustomerEmail: user.Email,
					Status:        order.Status.String(),
					TotalAmount:   order.TotalAmount.StringFixed(2),
					Items:         eventItems,
				},
				Version: 1,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue paid event")
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": orderID.String(),
		"status":   next.String(),
	})
	s.logg.Info(logCtx, "order status updated")

	return s.toDTO(ctx, updated, s.usernameFor(ctx, updated.UserID)), nil
}

// DeleteOrder removes the order and its items. Stock reserved by orders that
// never reached a terminal state is returned first.
func (s *service) DeleteOrder(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderWithItems(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if !order.Status.IsTerminal() {
			if err := repo.RestockItems(ctx, order.Items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock items")
			}
		}
		if err := repo.DeleteOrder(ctx, orderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete order")
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": orderID.String(),
			"actor_id": actor.UserID.String(),
		})
		s.logg.Info(logCtx, "order deleted")
		return nil
	})
}

func (s *service) toDTO(ctx context.Context, order *models.Order, username string) *OrderDTO {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.GraphicCardID)
	}
	names, err := s.repo.CardNames(ctx, ids)
	if err != nil {
		names = map[uuid.UUID]string{}
	}
	return NewOrderDTO(order, names, username)
}

// eventItemsFor rebuilds the line items of an existing order for an outbox
// payload, using the snapshot prices written at placement.
func (s *service) eventItemsFor(ctx context.Context, repo *Repository, items []models.OrderItem) ([]OrderEventItem, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.GraphicCardID)
	}
	names, err := repo.CardNames(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card names")
	}
	out := make([]OrderEventItem, 0, len(items))
	for _, item := range items {
		lineTotal := item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity)))
		out = append(out, OrderEventItem{
			GraphicCardID: item.GraphicCardID,
			Name:          names[item.GraphicCardID],
			Quantity:      item.Quantity,
			UnitPrice:     item.PriceAtPurchase.StringFixed(2),
			LineTotal:     lineTotal.StringFixed(2),
		})
	}
	return out, nil
}

func (s *service) usernameFor(ctx context.Context, userID uuid.UUID) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}

// mergeLines collapses duplicate card ids and validates quantities. Lines
// are sorted by card id so concurrent orders touch card rows in the same
// sequence.
func mergeLines(items []PlaceOrderItem) ([]PlaceOrderItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]PlaceOrderItem, 0, len(items))
	for _, item := range items {
		if item.GraphicCardID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "graphic_card_id is required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
		}
		if pos, ok := index[item.GraphicCardID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.GraphicCardID] = len(merged)
		merged = append(merged, item)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].GraphicCardID.String() < merged[j].GraphicCardID.String()
	})
	return merged, nil
}
