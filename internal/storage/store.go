package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB — общий интерфейс *pgxpool.Pool и pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStorage определяет интерфейс для работы с заказами.
type OrderStorage interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	Lock(ctx context.Context, id int64) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	ListDeleted(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Order, error)
	ListExpired(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error)
	Update(ctx context.Context, order *models.Order) error
	Purge(ctx context.Context, id int64, now time.Time) error
}

// RequestStorage определяет интерфейс для работы с запросами покупателей.
type RequestStorage interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id int64) (*models.Request, error)
	GetPending(ctx context.Context, orderID int64, slot models.RequestSlot) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error)
	Decide(ctx context.Context, req *models.Request) error
}

// Repositories — набор хранилищ, работающих поверх одного соединения или транзакции.
type Repositories interface {
	Orders() OrderStorage
	Requests() RequestStorage
}

// Store — хранилище с поддержкой транзакций.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// PostgresStore реализует Store для PostgreSQL.
type PostgresStore struct {
	db       DB
	orders   *PostgresOrderStorage
	requests *PostgresRequestStorage
}

// NewPostgresStore создаёт хранилище поверх пула соединений.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{
		db:       db,
		orders:   NewPostgresOrderStorage(db),
		requests: NewPostgresRequestStorage(db),
	}
}

func (s *PostgresStore) Orders() OrderStorage {
	return s.orders
}

func (s *PostgresStore) Requests() RequestStorage {
	return s.requests
}

// WithinTx выполняет fn в транзакции: либо все изменения фиксируются, либо ни одно.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (txErr error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("rollback tx: %w", rbErr))
			}
		}
	}()

	repos := &txRepositories{
		orders:   NewPostgresOrderStorage(tx),
		requests: NewPostgresRequestStorage(tx),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txRepositories struct {
	orders   *PostgresOrderStorage
	requests *PostgresRequestStorage
}

func (r *txRepositories) Orders() OrderStorage {
	return r.orders
}

func (r *txRepositories) Requests() RequestStorage {
	return r.requests
}

// isUniqueViolation распознаёт нарушение уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
