package models

import (
	"time"

	"github.com/google/uuid"
)

// Role определяет роль пользователя.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	// RoleSystem используется фоновыми задачами (очистка просроченных удалений).
	RoleSystem Role = "system"
)

// Valid проверяет роль, которую может нести токен.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// User представляет пользователя системы.
type User struct {
	ID           uuid.UUID `db:"id"`
	Login        string    `db:"login"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Actor — инициатор команды: пользователь и его роль.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// SystemActor — инициатор фоновых команд.
var SystemActor = Actor{Role: RoleSystem}

// IsAdmin сообщает, что команду выполняет администратор.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Credentials - логин и пароль для регистрации и входа.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SessionResponse - ответ на успешную регистрацию или вход.
type SessionResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Login     string    `json:"login"`
	Role      Role      `json:"role"`
	ExpiresAt string    `json:"expires_at"`
}
