package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/google/uuid"
)

// SoftDelete скрывает заказ на срок хранения. До истечения срока его можно восстановить.
func (s *WorkflowServiceImpl) SoftDelete(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionDelete); err != nil {
		return nil, err
	}

	return s.mutateOrder(ctx, orderID, func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error) {
		if err := checkOwner(actor, order); err != nil {
			return nil, err
		}
		if order.Deletion.IsDeleted {
			return nil, conflictf("order %d is already deleted", order.ID)
		}
		if order.Status == models.OrderStatusCancelRequested {
			return nil, conflictf("order %d has a pending %s request", order.ID, order.Cancellation.Kind)
		}

		deletedAt := now
		deletedBy := actor.UserID
		expiresAt := now.Add(models.DeletionRetention)
		order.Deletion = models.Deletion{
			IsDeleted:    true,
			DeletedAt:    &deletedAt,
			DeletedBy:    &deletedBy,
			ExpiresAt:    &expiresAt,
			StatusBefore: order.Status,
		}
		order.DetailsVisible = false

		return []models.OrderEvent{newEvent(models.EventOrderDeleted, order, actor, now)}, nil
	})
}

// SubmitRestoration открывает запрос на восстановление удалённого заказа.
func (s *WorkflowServiceImpl) SubmitRestoration(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Request, error) {
	if err := s.authorize(actor, auth.ResourceRestoration, auth.ActionSubmit); err != nil {
		return nil, err
	}
	if err := models.ValidateRestorationReason(reason); err != nil {
		return nil, validationError(err)
	}
	reason = strings.TrimSpace(reason)

	var req *models.Request
	_, err := s.mutateOrder(ctx, orderID, func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error) {
		if order.UserID != actor.UserID {
			return nil, fmt.Errorf("%w: only the owner may request restoration of order %d", ErrForbidden, order.ID)
		}
		if !order.Deletion.IsDeleted {
			return nil, conflictf("order %d is not deleted", order.ID)
		}
		if order.DeletionExpired(now) {
			return nil, fmt.Errorf("%w: restoration window of order %d closed at %s",
				ErrWindowExpired, order.ID, order.Deletion.ExpiresAt.Format(time.RFC3339))
		}
		if order.Restoration.Requested {
			return nil, conflictf("order %d already has a pending restoration request", order.ID)
		}

		req = &models.Request{
			OrderID:     order.ID,
			Kind:        models.RequestKindRestoration,
			RequesterID: actor.UserID,
			Reason:      reason,
			Status:      models.RequestStatusPending,
			CreatedAt:   now,
		}
		if err := tx.Requests().Create(ctx, req); err != nil {
			return nil, err
		}

		requestedBy := actor.UserID
		requestedAt := now
		order.Restoration = models.Restoration{
			Requested:   true,
			Reason:      reason,
			Status:      models.RestorationStatusPending,
			RequestedBy: &requestedBy,
			RequestedAt: &requestedAt,
		}

		event := newEvent(models.EventRestorationRequested, order, actor, now)
		event.RequestID = req.ID
		return []models.OrderEvent{event}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DecideRestoration решает открытый запрос на восстановление заказа.
func (s *WorkflowServiceImpl) DecideRestoration(ctx context.Context, actor models.Actor, orderID int64, in DecisionInput) (*models.Request, error) {
	if err := s.authorize(actor, auth.ResourceRestoration, auth.ActionDecide); err != nil {
		return nil, err
	}
	if !in.Decision.Valid() {
		return nil, validationf("unknown decision %q", in.Decision)
	}

	var decided *models.Request
	err := s.execute(ctx, func(ctx context.Context, tx storage.Repositories, now time.Time) ([]models.OrderEvent, error) {
		order, err := tx.Orders().Lock(ctx, orderID)
		if err != nil {
			return nil, err
		}

		req, err := tx.Requests().GetPending(ctx, order.ID, models.RequestSlotRestoration)
		if errors.Is(err, storage.ErrRequestNotFound) {
			return nil, conflictf("order %d has no pending restoration request", order.ID)
		}
		if err != nil {
			return nil, err
		}

		events, err := s.decideLocked(ctx, tx, actor, order, req, in, now)
		if err != nil {
			return nil, err
		}
		decided = req
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// resolveRestoration снимает удаление при одобрении. Отклонение оставляет заказ
// удалённым и позволяет подать новый запрос до истечения срока.
func resolveRestoration(order *models.Order, actor models.Actor, decision models.Decision, note string, now time.Time) ([]models.OrderEvent, error) {
	if !order.Deletion.IsDeleted {
		return nil, conflictf("order %d is not deleted", order.ID)
	}

	decidedBy := actor.UserID
	decidedAt := now
	order.Restoration.Requested = false
	order.Restoration.DecidedBy = &decidedBy
	order.Restoration.DecidedAt = &decidedAt

	if decision == models.DecisionReject {
		order.Restoration.Status = models.RestorationStatusRejected
		order.Restoration.RejectionReason = note
		return nil, nil
	}

	if order.DeletionExpired(now) {
		return nil, fmt.Errorf("%w: restoration window of order %d closed at %s",
			ErrWindowExpired, order.ID, order.Deletion.ExpiresAt.Format(time.RFC3339))
	}

	order.Deletion = models.Deletion{}
	order.Restoration.Status = models.RestorationStatusApproved
	order.Restoration.RejectionReason = ""
	return []models.OrderEvent{newEvent(models.EventOrderRestored, order, actor, now)}, nil
}

// ListDeleted возвращает удалённые заказы, которые ещё можно восстановить.
// Покупатель видит только свои, администратор видит все.
func (s *WorkflowServiceImpl) ListDeleted(ctx context.Context, actor models.Actor) ([]*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionList); err != nil {
		return nil, err
	}

	var userID *uuid.UUID
	if !actor.IsAdmin() {
		userID = &actor.UserID
	}

	orders, err := s.store.Orders().ListDeleted(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list deleted orders: %w", err)
	}
	return orders, nil
}

// ExpiredOrders возвращает идентификаторы заказов с истёкшим сроком хранения,
// большие afterID, в порядке возрастания.
func (s *WorkflowServiceImpl) ExpiredOrders(ctx context.Context, actor models.Actor, afterID int64, limit int) ([]int64, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionPurge); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, validationf("limit must be positive")
	}

	ids, err := s.store.Orders().ListExpired(ctx, s.now(), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired orders: %w", err)
	}
	return ids, nil
}

// Purge окончательно удаляет заказ с истёкшим сроком хранения вместе с его запросами.
// Срок проверяется повторно под блокировкой строки.
func (s *WorkflowServiceImpl) Purge(ctx context.Context, actor models.Actor, orderID int64) error {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionPurge); err != nil {
		return err
	}

	return s.execute(ctx, func(ctx context.Context, tx storage.Repositories, now time.Time) ([]models.OrderEvent, error) {
		order, err := tx.Orders().Lock(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !order.DeletionExpired(now) {
			return nil, conflictf("order %d is not eligible for purge", order.ID)
		}

		if err := tx.Orders().Purge(ctx, order.ID, now); err != nil {
			return nil, err
		}
		return []models.OrderEvent{newEvent(models.EventOrderPurged, order, actor, now)}, nil
	})
}
