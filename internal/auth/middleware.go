package auth

import (
	"net/http"
	"strings"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ContextKey - ключ значения в echo.Context.
type ContextKey string

const (
	UserIDKey    ContextKey = "user_id"
	UserLoginKey ContextKey = "user_login"
	UserRoleKey  ContextKey = "user_role"
)

// TokenCookieName - cookie, в которой клиент может передать токен.
const TokenCookieName = "Authorization"

type tokenSource func(c echo.Context) string

// JWTMiddleware пропускает запрос только с действующим токеном.
// Токен из заголовка Authorization важнее токена из cookie.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	sources := []tokenSource{extractTokenFromHeader, extractTokenFromCookie}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			for _, source := range sources {
				if token = source(c); token != "" {
					break
				}
			}
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
			}

			claims, err := ValidateToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			actor := claims.Actor()
			c.Set(string(UserIDKey), actor.UserID)
			c.Set(string(UserRoleKey), actor.Role)
			c.Set(string(UserLoginKey), claims.Login)
			return next(c)
		}
	}
}

// extractTokenFromHeader ожидает строго "Bearer <token>".
func extractTokenFromHeader(c echo.Context) string {
	fields := strings.Fields(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
		return ""
	}
	return fields[1]
}

func extractTokenFromCookie(c echo.Context) string {
	if cookie, err := c.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// GetUserIDFromContext возвращает ID пользователя, положенный JWTMiddleware.
func GetUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	if userID, ok := c.Get(string(UserIDKey)).(uuid.UUID); ok {
		return userID, nil
	}
	return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "user not found in context")
}

// GetActorFromContext собирает инициатора команды из данных токена.
func GetActorFromContext(c echo.Context) (models.Actor, error) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		return models.Actor{}, err
	}
	role, ok := c.Get(string(UserRoleKey)).(models.Role)
	if !ok || !role.Valid() {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "role not found in context")
	}
	return models.Actor{UserID: userID, Role: role}, nil
}
