package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/topup-store/internal/domain/order"
)

const (
	orderColumns = `id, user_id, product_id, platform, product_type, quantity,
		unit_price, original_price, discount_amount, final_price,
		COALESCE(promocode, ''), payment_method, COALESCE(receipt_url, ''), status, created_at`

	createOrderSQL = `INSERT INTO orders
		(id, user_id, product_id, platform, product_type, quantity,
		 unit_price, original_price, discount_amount, final_price,
		 promocode, payment_method, receipt_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	// Conditional on the expected current status so concurrent admin reviews
	// cannot both apply.
	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, o.UserID, o.ProductID, o.Platform, o.ProductType, o.Quantity,
		o.UnitPrice, o.OriginalPrice, o.DiscountAmount, o.FinalPrice,
		nullable(o.Promocode), string(o.PaymentMethod), nullable(o.ReceiptURL), string(o.Status),
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID looks up an order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %q: %w", id, err)
	}
	return &o, nil
}

// Delete removes an order row. Missing rows are not an error: the
// compensating path may retry a delete that already succeeded.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, id); err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	return nil
}

// UpdateStatus flips the status only if the row still holds from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return order.ErrStatusConflict
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ProductID, &o.Platform, &o.ProductType, &o.Quantity,
		&o.UnitPrice, &o.OriginalPrice, &o.DiscountAmount, &o.FinalPrice,
		&o.Promocode, &paymentMethod, &o.ReceiptURL, &status, &o.CreatedAt,
	)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	return o, err
}
