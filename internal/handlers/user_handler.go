package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/services"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/labstack/echo/v4"
)

// UserHandler обрабатывает регистрацию и вход.
type UserHandler struct {
	userService services.UserService
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewUserHandler создаёт обработчик. tokenTTL задаёт срок жизни cookie
// и должен совпадать со сроком действия токена.
func NewUserHandler(userService services.UserService, tokenTTL time.Duration) *UserHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &UserHandler{userService: userService, tokenTTL: tokenTTL, now: time.Now}
}

type authenticateFunc func(ctx context.Context, login, password string) (*models.User, string, error)

// Register обрабатывает POST /api/user/register.
func (h *UserHandler) Register(c echo.Context) error {
	return h.authenticate(c, h.userService.Register, "failed to register user")
}

// Login обрабатывает POST /api/user/login.
func (h *UserHandler) Login(c echo.Context) error {
	return h.authenticate(c, h.userService.Login, "failed to login user")
}

func (h *UserHandler) authenticate(c echo.Context, fn authenticateFunc, failure string) error {
	var req models.Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	user, token, err := fn(c.Request().Context(), req.Login, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrEmptyCredentials), errors.Is(err, auth.ErrPasswordTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrLoginExists):
		return echo.NewHTTPError(http.StatusConflict, "login already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid login or password")
	default:
		c.Logger().Errorf("%s: %v", failure, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.setAuthToken(c, token)

	return c.JSON(http.StatusOK, &models.SessionResponse{
		UserID:    user.ID,
		Login:     user.Login,
		Role:      user.Role,
		ExpiresAt: h.now().Add(h.tokenTTL).UTC().Format(time.RFC3339),
	})
}

// setAuthToken кладёт токен в cookie и в заголовок ответа.
func (h *UserHandler) setAuthToken(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
	c.Response().Header().Set("Authorization", "Bearer "+token)
}
