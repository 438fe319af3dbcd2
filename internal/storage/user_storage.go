package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrLoginExists  = errors.New("login already exists")
)

// UserStorage хранит учётные записи покупателей и администраторов.
type UserStorage interface {
	Create(ctx context.Context, user *models.User) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

const selectUser = `SELECT id, login, password_hash, role, created_at, updated_at FROM users`

// PostgresUserStorage - UserStorage поверх PostgreSQL.
type PostgresUserStorage struct {
	db DB
}

func NewPostgresUserStorage(db DB) *PostgresUserStorage {
	return &PostgresUserStorage{db: db}
}

// Create сохраняет пользователя. Пустые ID и роль заполняются
// значениями по умолчанию, занятый логин даёт ErrLoginExists.
func (s *PostgresUserStorage) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO users (id, login, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		user.ID, user.Login, user.PasswordHash, user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return ErrLoginExists
	default:
		return fmt.Errorf("insert user %q: %w", user.Login, err)
	}
}

func (s *PostgresUserStorage) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.getOne(ctx, selectUser+` WHERE login = $1`, login)
}

func (s *PostgresUserStorage) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

func (s *PostgresUserStorage) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Login, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by %v: %w", arg, err)
	}
	return &user, nil
}
