package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

const orderColumns = `
	id, user_id, items, total_amount, currency, payment_method, shipping_address, status,
	processing_at, shipped_at, out_for_delivery_at, delivered_at,
	cancelled_at, refund_processing_at, refunded_at,
	courier_name, tracking_number, estimated_delivery,
	cancel_kind, cancel_reason, cancel_note, cancel_evidence, cancel_requested_at,
	pre_cancel_status, cancel_decided_by, cancel_decided_at, cancel_rejection_reason,
	refund_status, refund_amount, refund_transaction_id,
	details_visible,
	is_deleted, deleted_at, deleted_by, deletion_expires_at, status_before_deletion,
	restoration_requested, restoration_reason, restoration_status,
	restoration_requested_by, restoration_requested_at,
	restoration_decided_by, restoration_decided_at, restoration_rejection_reason,
	version, created_at, updated_at`

// PostgresOrderStorage реализует OrderStorage для PostgreSQL.
type PostgresOrderStorage struct {
	db DB
}

// NewPostgresOrderStorage создаёт новый экземпляр PostgresOrderStorage.
func NewPostgresOrderStorage(db DB) *PostgresOrderStorage {
	return &PostgresOrderStorage{db: db}
}

// Create сохраняет новый заказ и заполняет id, версию и отметки времени.
func (s *PostgresOrderStorage) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, items, total_amount, currency, payment_method, shipping_address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, version, created_at, updated_at
	`

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := s.db.QueryRow(ctx, query,
		order.UserID,
		order.Items,
		order.TotalAmount,
		order.Currency,
		order.PaymentMethod,
		order.ShippingAddress,
		order.Status,
		createdAt,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID возвращает заказ по идентификатору.
func (s *PostgresOrderStorage) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.db.QueryRow(ctx, query, id))
}

// Lock читает заказ с блокировкой строки до конца транзакции.
func (s *PostgresOrderStorage) Lock(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(s.db.QueryRow(ctx, query, id))
}

// List возвращает активные (не удалённые) заказы, новые первыми.
func (s *PostgresOrderStorage) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	conditions := []string{"NOT is_deleted"}
	var args []any

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, lo.Map(filter.Statuses, func(st models.OrderStatus, _ int) string { return string(st) }))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	return s.queryOrders(ctx, query, args...)
}

// ListDeleted возвращает удалённые заказы, срок восстановления которых ещё не истёк.
func (s *PostgresOrderStorage) ListDeleted(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Order, error) {
	args := []any{now}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE is_deleted AND deletion_expires_at >= $1`
	if userID != nil {
		args = append(args, *userID)
		query += ` AND user_id = $2`
	}
	query += ` ORDER BY deleted_at DESC, id DESC`

	return s.queryOrders(ctx, query, args...)
}

// ListExpired возвращает идентификаторы удалённых заказов с истёкшим сроком восстановления,
// следующие за afterID в порядке возрастания.
func (s *PostgresOrderStorage) ListExpired(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	query := `
		SELECT id FROM orders
		WHERE is_deleted AND deletion_expires_at < $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, now, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired orders: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect expired orders: %w", err)
	}
	return ids, nil
}

// Update сохраняет изменяемые поля заказа при совпадении версии и увеличивает её.
func (s *PostgresOrderStorage) Update(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders SET
			status = $3,
			processing_at = $4, shipped_at = $5, out_for_delivery_at = $6, delivered_at = $7,
			cancelled_at = $8, refund_processing_at = $9, refunded_at = $10,
			courier_name = $11, tracking_number = $12, estimated_delivery = $13,
			cancel_kind = $14, cancel_reason = $15, cancel_note = $16, cancel_evidence = $17,
			cancel_requested_at = $18, pre_cancel_status = $19, cancel_decided_by = $20,
			cancel_decided_at = $21, cancel_rejection_reason = $22,
			refund_status = $23, refund_amount = $24, refund_transaction_id = $25,
			details_visible = $26,
			is_deleted = $27, deleted_at = $28, deleted_by = $29, deletion_expires_at = $30,
			status_before_deletion = $31,
			restoration_requested = $32, restoration_reason = $33, restoration_status = $34,
			restoration_requested_by = $35, restoration_requested_at = $36,
			restoration_decided_by = $37, restoration_decided_at = $38,
			restoration_rejection_reason = $39,
			updated_at = $40,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	updatedAt := order.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	m := order.Milestones
	c := order.Cancellation
	d := order.Deletion
	r := order.Restoration

	err := s.db.QueryRow(ctx, query,
		order.ID, order.Version,
		order.Status,
		m.ProcessingAt, m.ShippedAt, m.OutForDeliveryAt, m.DeliveredAt,
		m.CancelledAt, m.RefundProcessingAt, m.RefundedAt,
		order.Tracking.CourierName, order.Tracking.TrackingNumber, order.Tracking.EstimatedDelivery,
		c.Kind, c.Reason, c.Note, nonNilStrings(c.Evidence),
		c.RequestedAt, c.PreviousStatus, c.DecidedBy,
		c.DecidedAt, c.RejectionReason,
		order.Refund.Status, order.Refund.Amount, order.Refund.TransactionID,
		order.DetailsVisible,
		d.IsDeleted, d.DeletedAt, d.DeletedBy, d.ExpiresAt,
		d.StatusBefore,
		r.Requested, r.Reason, r.Status,
		r.RequestedBy, r.RequestedAt,
		r.DecidedBy, r.DecidedAt,
		r.RejectionReason,
		updatedAt,
	).Scan(&order.Version, &order.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to update order: %w", err)
	}

	// Строка не обновилась: заказа нет либо версия устарела.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrVersionConflict
}

// Purge безвозвратно удаляет заказ, если срок восстановления истёк.
func (s *PostgresOrderStorage) Purge(ctx context.Context, id int64, now time.Time) error {
	query := `DELETE FROM orders WHERE id = $1 AND is_deleted AND deletion_expires_at < $2`

	result, err := s.db.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("failed to purge order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (s *PostgresOrderStorage) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return orders, nil
}

// scanOrder помогает читать заказ из строки результата.
func scanOrder(row pgx.Row) (*models.Order, error) {
	var order models.Order
	m := &order.Milestones
	c := &order.Cancellation
	d := &order.Deletion
	r := &order.Restoration

	err := row.Scan(
		&order.ID, &order.UserID, &order.Items, &order.TotalAmount, &order.Currency,
		&order.PaymentMethod, &order.ShippingAddress, &order.Status,
		&m.ProcessingAt, &m.ShippedAt, &m.OutForDeliveryAt, &m.DeliveredAt,
		&m.CancelledAt, &m.RefundProcessingAt, &m.RefundedAt,
		&order.Tracking.CourierName, &order.Tracking.TrackingNumber, &order.Tracking.EstimatedDelivery,
		&c.Kind, &c.Reason, &c.Note, &c.Evidence, &c.RequestedAt,
		&c.PreviousStatus, &c.DecidedBy, &c.DecidedAt, &c.RejectionReason,
		&order.Refund.Status, &order.Refund.Amount, &order.Refund.TransactionID,
		&order.DetailsVisible,
		&d.IsDeleted, &d.DeletedAt, &d.DeletedBy, &d.ExpiresAt, &d.StatusBefore,
		&r.Requested, &r.Reason, &r.Status,
		&r.RequestedBy, &r.RequestedAt,
		&r.DecidedBy, &r.DecidedAt, &r.RejectionReason,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.Currency = strings.TrimSpace(order.Currency)
	return &order, nil
}

// paginate дописывает LIMIT/OFFSET, если они заданы.
func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
