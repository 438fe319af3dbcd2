package services

import (
	"errors"
	"fmt"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
)

// Ошибки движка заказов. Обработчики сопоставляют их с HTTP-статусами.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidationFailed  = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrWindowExpired     = errors.New("window expired")
)

// mapStorageError переводит ошибки хранилища в ошибки движка.
// Прочие ошибки (недоступность БД) возвращаются как есть.
func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrRequestNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, storage.ErrPendingRequestExists),
		errors.Is(err, storage.ErrRequestAlreadyDecided):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidationFailed, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidationFailed}, args...)...)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

func invalidTransition(from, to models.OrderStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
