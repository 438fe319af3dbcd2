package handlers

import (
	"errors"
	"net/http"

	"github.com/agamariel/orderflow/internal/services"
	"github.com/labstack/echo/v4"
)

// workflowError переводит ошибку движка в HTTP-ответ.
func workflowError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidationFailed):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrWindowExpired):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	c.Logger().Errorf("workflow command failed: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
