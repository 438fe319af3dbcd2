package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresUserStorage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	users := NewPostgresUserStorage(mock)
	ctx := context.Background()
	now := time.Now()
	id := uuid.New()

	t.Run("create defaults role", func(t *testing.T) {
		user := &models.User{ID: id, Login: "buyer", PasswordHash: "hash"}
		mock.ExpectQuery("INSERT INTO users").WithArgs(id, "buyer", "hash", models.RoleCustomer).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

		require.NoError(t, users.Create(ctx, user))
		assert.Equal(t, models.RoleCustomer, user.Role)
	})

	t.Run("duplicate login", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505"})
		err := users.Create(ctx, &models.User{Login: "buyer", PasswordHash: "hash"})
		assert.ErrorIs(t, err, ErrLoginExists)
	})

	t.Run("get by login", func(t *testing.T) {
		mock.ExpectQuery("WHERE login =").WithArgs("root").
			WillReturnRows(pgxmock.NewRows([]string{"id", "login", "password_hash", "role", "created_at", "updated_at"}).
				AddRow(id, "root", "hash", models.RoleAdmin, now, now))

		user, err := users.GetByLogin(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
	})

	t.Run("missing user", func(t *testing.T) {
		mock.ExpectQuery("WHERE id =").WithArgs(id).WillReturnError(pgx.ErrNoRows)
		_, err := users.GetByID(ctx, id)
		assert.ErrorIs(t, err, ErrUserNotFound)

		mock.ExpectQuery("WHERE login =").WithArgs("x").WillReturnError(errors.New("boom"))
		_, err = users.GetByLogin(ctx, "x")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUserNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
