package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const orderColumns = `id, order_number, user_id, total_amount, shipping_cost, final_amount, shipping_address,
	payment_method, payment_status, status, stripe_payment_intent_id, stripe_session_id, transaction_id,
	tracking_number, notes, cancel_reason, paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

// maxOrderNumberAttempts bounds regeneration when a generated order number collides
const maxOrderNumberAttempts = 5

type orderRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db dbtx, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	// ON CONFLICT keeps the surrounding transaction usable when the number collides
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (order_number) DO NOTHING
	`

	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt
	generated := order.OrderNumber == ""

	shippingAddressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if generated {
			order.OrderNumber = domain.NewOrderNumber(now)
		}

		result, err := r.db.ExecContext(ctx, query,
			order.ID,
			order.OrderNumber,
			order.UserID,
			order.TotalAmount,
			order.ShippingCost,
			order.FinalAmount,
			shippingAddressJSON,
			order.PaymentMethod,
			order.PaymentStatus,
			order.Status,
			order.StripePaymentIntentID,
			order.StripeSessionID,
			order.TransactionID,
			order.TrackingNumber,
			order.Notes,
			order.CancelReason,
			order.PaidAt,
			order.ShippedAt,
			order.DeliveredAt,
			order.CancelledAt,
			order.CreatedAt,
			order.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: fmt.Sprintf("order already exists (%s)", uniqueConstraint(err))}
		}
		if err != nil {
			r.logger.Error("Failed to create order", zap.Error(err))
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 1 {
			break
		}
		if !generated || attempt+1 >= maxOrderNumberAttempts {
			return &errors.ErrConflict{Message: "order number already in use: " + order.OrderNumber}
		}
		r.logger.Warn("Order number collision, regenerating", zap.String("order_number", order.OrderNumber))
	}

	return r.insertItems(ctx, order)
}

func (r *orderRepository) insertItems(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, name, image, quantity, price, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for i, item := range order.Items {
		_, err := r.db.ExecContext(ctx, query,
			uuid.New(),
			order.ID,
			item.ProductID,
			item.Name,
			item.Image,
			item.Quantity,
			item.Price,
			i,
		)
		if err != nil {
			r.logger.Error("Failed to create order item", zap.Error(err), zap.String("order_id", order.ID.String()))
			return err
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, "id = $1", id, id.String())
}

func (r *orderRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, "id = $1 FOR UPDATE", id, id.String())
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return r.getOne(ctx, "order_number = $1", orderNumber, orderNumber)
}

func (r *orderRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return r.getOne(ctx, "stripe_payment_intent_id = $1", intentID, intentID)
}

func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.getOne(ctx, "stripe_session_id = $1", sessionID, sessionID)
}

func (r *orderRepository) getOne(ctx context.Context, where string, arg interface{}, label string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: label}
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.Error(err), zap.String("lookup", label))
		return nil, err
	}

	if err := r.loadItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET payment_method = $2, payment_status = $3, status = $4, stripe_payment_intent_id = $5,
			stripe_session_id = $6, transaction_id = $7, tracking_number = $8, notes = $9,
			cancel_reason = $10, paid_at = $11, shipped_at = $12, delivered_at = $13, cancelled_at = $14,
			updated_at = $15
		WHERE id = $1
	`

	order.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.PaymentMethod,
		order.PaymentStatus,
		order.Status,
		order.StripePaymentIntentID,
		order.StripeSessionID,
		order.TransactionID,
		order.TrackingNumber,
		order.Notes,
		order.CancelReason,
		order.PaidAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &errors.ErrConflict{Message: fmt.Sprintf("order payment reference already in use (%s)", uniqueConstraint(err))}
	}
	if err != nil {
		r.logger.Error("Failed to update order", zap.Error(err), zap.String("order_id", order.ID.String()))
		return err
	}
	return expectOne(result, "order", order.ID.String())
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	return r.list(ctx, []string{"user_id = $1"}, []interface{}{userID}, limit, offset)
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	var where []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, filter.PaymentStatus)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, strings.ToUpper(s)+"%")
		where = append(where, fmt.Sprintf("order_number LIKE $%d", len(args)))
	}
	return r.list(ctx, where, args, filter.Limit, filter.Offset)
}

func (r *orderRepository) list(ctx context.Context, where []string, args []interface{}, limit, offset int) ([]*domain.Order, int, error) {
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count orders", zap.Error(err))
		return nil, 0, err
	}

	limit, offset = clampPage(limit, offset)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)-1, len(args))

	orders, err := r.queryOrders(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = $1 AND payment_status = $2 AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`
	return r.queryOrders(ctx, query, domain.OrderStatusPending, domain.PaymentStatusPending, createdBefore, limit)
}

func (r *orderRepository) HasDeliveredOrderWithProduct(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = $3
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, productID, domain.OrderStatusDelivered).Scan(&exists); err != nil {
		r.logger.Error("Failed to check delivered orders", zap.Error(err))
		return false, err
	}
	return exists, nil
}

func (r *orderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems fills Items for every order with one query
func (r *orderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		o.Items = []domain.OrderItem{}
		byID[o.ID] = o
		ids = append(ids, o.ID.String())
	}

	query := `
		SELECT order_id, product_id, name, image, quantity, price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to load order items", zap.Error(err))
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item domain.OrderItem
		var image sql.NullString
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &image, &item.Quantity, &item.Price); err != nil {
			return err
		}
		item.Image = image.String
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row scanner) (*domain.Order, error) {
	var order domain.Order
	var shippingAddressJSON []byte

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.TotalAmount,
		&order.ShippingCost,
		&order.FinalAmount,
		&shippingAddressJSON,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&order.StripePaymentIntentID,
		&order.StripeSessionID,
		&order.TransactionID,
		&order.TrackingNumber,
		&order.Notes,
		&order.CancelReason,
		&order.PaidAt,
		&order.ShippedAt,
		&order.DeliveredAt,
		&order.CancelledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shippingAddressJSON, &order.ShippingAddress); err != nil {
		return nil, err
	}
	return &order, nil
}
