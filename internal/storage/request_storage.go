package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrRequestNotFound       = errors.New("request not found")
	ErrPendingRequestExists  = errors.New("order already has a pending request of this kind")
	ErrRequestAlreadyDecided = errors.New("request already decided")
)

const requestColumns = `
	id, order_id, kind, requester_id, reason, description, evidence, status,
	previous_status, admin_note, decided_by, decided_at, created_at, updated_at`

// PostgresRequestStorage реализует RequestStorage для PostgreSQL.
type PostgresRequestStorage struct {
	db DB
}

// NewPostgresRequestStorage создаёт новый экземпляр PostgresRequestStorage.
func NewPostgresRequestStorage(db DB) *PostgresRequestStorage {
	return &PostgresRequestStorage{db: db}
}

// Create сохраняет новый запрос. Второй открытый запрос в том же слоте отклоняется индексом.
func (s *PostgresRequestStorage) Create(ctx context.Context, req *models.Request) error {
	query := `
		INSERT INTO order_requests (order_id, kind, slot, requester_id, reason, description, evidence, status, previous_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id, created_at, updated_at
	`

	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := s.db.QueryRow(ctx, query,
		req.OrderID,
		req.Kind,
		req.Kind.Slot(),
		req.RequesterID,
		req.Reason,
		req.Description,
		nonNilStrings(req.Evidence),
		req.Status,
		req.PreviousStatus,
		createdAt,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPendingRequestExists
		}
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID возвращает запрос по идентификатору.
func (s *PostgresRequestStorage) GetByID(ctx context.Context, id int64) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM order_requests WHERE id = $1`
	return scanRequest(s.db.QueryRow(ctx, query, id))
}

// GetPending возвращает открытый запрос заказа в указанном слоте.
func (s *PostgresRequestStorage) GetPending(ctx context.Context, orderID int64, slot models.RequestSlot) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM order_requests WHERE order_id = $1 AND slot = $2 AND status = 'pending'`
	return scanRequest(s.db.QueryRow(ctx, query, orderID, slot))
}

// List возвращает запросы по фильтру, старые первыми.
func (s *PostgresRequestStorage) List(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	var conditions []string
	var args []any

	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM order_requests`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}

	return requests, nil
}

// Decide фиксирует решение по открытому запросу. Повторное решение возвращает ErrRequestAlreadyDecided.
func (s *PostgresRequestStorage) Decide(ctx context.Context, req *models.Request) error {
	query := `
		UPDATE order_requests
		SET status = $2, admin_note = $3, decided_by = $4, decided_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING updated_at
	`

	err := s.db.QueryRow(ctx, query,
		req.ID,
		req.Status,
		req.AdminNote,
		req.DecidedBy,
		req.DecidedAt,
	).Scan(&req.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to decide request: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM order_requests WHERE id = $1)`, req.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check request existence: %w", err)
	}
	if !exists {
		return ErrRequestNotFound
	}
	return ErrRequestAlreadyDecided
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	err := row.Scan(
		&req.ID, &req.OrderID, &req.Kind, &req.RequesterID,
		&req.Reason, &req.Description, &req.Evidence, &req.Status,
		&req.PreviousStatus, &req.AdminNote, &req.DecidedBy, &req.DecidedAt,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}
	return &req, nil
}
