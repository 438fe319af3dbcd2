package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
)

// SubmitRequest создаёт запрос покупателя: отмену, возврат, замену или доступ к деталям.
// Запрос на восстановление передаётся в SubmitRestoration.
func (s *WorkflowServiceImpl) SubmitRequest(ctx context.Context, actor models.Actor, orderID int64, in RequestInput) (*models.Request, error) {
	if !in.Kind.Valid() {
		return nil, validationf("unknown request kind %q", in.Kind)
	}
	if in.Kind == models.RequestKindRestoration {
		return s.SubmitRestoration(ctx, actor, orderID, in.Reason)
	}

	if err := s.authorize(actor, auth.ResourceRequest, auth.ActionSubmit); err != nil {
		return nil, err
	}
	if err := validateRequestInput(in); err != nil {
		return nil, err
	}

	var req *models.Request
	_, err := s.mutateOrder(ctx, orderID, func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error) {
		if err := checkOwner(actor, order); err != nil {
			return nil, err
		}

		req = &models.Request{
			OrderID:     order.ID,
			Kind:        in.Kind,
			RequesterID: actor.UserID,
			Reason:      strings.TrimSpace(in.Reason),
			Description: strings.TrimSpace(in.Description),
			Evidence:    models.NormalizeEvidence(in.Evidence),
			Status:      models.RequestStatusPending,
			CreatedAt:   now,
		}

		var events []models.OrderEvent
		if in.Kind == models.RequestKindDetailAccess {
			if !order.Deletion.IsDeleted || order.DetailsVisible {
				return nil, conflictf("details of order %d are already visible", order.ID)
			}
		} else {
			statusEvent, err := openCancellation(order, req, actor, now)
			if err != nil {
				return nil, err
			}
			events = append(events, statusEvent)
		}

		if err := tx.Requests().Create(ctx, req); err != nil {
			return nil, err
		}

		submitted := newEvent(models.EventRequestSubmitted, order, actor, now)
		submitted.RequestID = req.ID
		return append(events, submitted), nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// openCancellation переводит заказ в cancel_requested и запоминает статус для отката.
func openCancellation(order *models.Order, req *models.Request, actor models.Actor, now time.Time) (models.OrderEvent, error) {
	if order.Deletion.IsDeleted {
		return models.OrderEvent{}, conflictf("order %d is deleted", order.ID)
	}
	if order.Status == models.OrderStatusCancelRequested {
		return models.OrderEvent{}, conflictf("order %d already has an open cancellation request", order.ID)
	}

	switch req.Kind {
	case models.RequestKindCancel:
		if !order.Status.Cancellable() {
			return models.OrderEvent{}, invalidTransition(order.Status, models.OrderStatusCancelRequested)
		}
	case models.RequestKindReturn, models.RequestKindReplace:
		if order.Status != models.OrderStatusDelivered {
			return models.OrderEvent{}, invalidTransition(order.Status, models.OrderStatusCancelRequested)
		}
		if !order.ReturnEligible(now) {
			return models.OrderEvent{}, fmt.Errorf("%w: return window closed at %s",
				ErrWindowExpired, order.ReturnDeadline().Format(time.RFC3339))
		}
	}

	req.PreviousStatus = order.Status
	requestedAt := now
	order.Cancellation = models.Cancellation{
		Kind:           req.Kind,
		Reason:         req.Reason,
		Note:           req.Description,
		Evidence:       append([]string(nil), req.Evidence...),
		RequestedAt:    &requestedAt,
		PreviousStatus: order.Status,
	}
	return setStatus(order, models.OrderStatusCancelRequested, actor, now)
}

// DecideRequest применяет решение администратора к открытому запросу.
// Повторное решение по тому же запросу возвращает ErrConflict.
func (s *WorkflowServiceImpl) DecideRequest(ctx context.Context, actor models.Actor, requestID int64, in DecisionInput) (*models.Request, error) {
	if err := s.authorize(actor, auth.ResourceRequest, auth.ActionDecide); err != nil {
		return nil, err
	}
	if !in.Decision.Valid() {
		return nil, validationf("unknown decision %q", in.Decision)
	}

	var decided *models.Request
	err := s.execute(ctx, func(ctx context.Context, tx storage.Repositories, now time.Time) ([]models.OrderEvent, error) {
		req, err := tx.Requests().GetByID(ctx, requestID)
		if err != nil {
			return nil, err
		}

		order, err := tx.Orders().Lock(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		// Все решения по заказу проходят под блокировкой его строки, перечитываем запрос.
		req, err = tx.Requests().GetByID(ctx, requestID)
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

// ListRequests возвращает запросы для очереди администратора.
func (s *WorkflowServiceImpl) ListRequests(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]*models.Request, error) {
	if err := s.authorize(actor, auth.ResourceRequest, auth.ActionList); err != nil {
		return nil, err
	}
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, validationf("unknown request kind %q", *filter.Kind)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validationf("unknown request status %q", *filter.Status)
	}
	if filter.Offset < 0 {
		return nil, validationf("offset must not be negative")
	}
	filter.Limit = pageSize(filter.Limit)

	requests, err := s.store.Requests().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// decideLocked выполняет решение при заблокированном заказе и сохраняет заказ и запрос.
func (s *WorkflowServiceImpl) decideLocked(ctx context.Context, tx storage.Repositories, actor models.Actor, order *models.Order, req *models.Request, in DecisionInput, now time.Time) ([]models.OrderEvent, error) {
	if req.Status != models.RequestStatusPending {
		return nil, conflictf("request %d is already %s", req.ID, req.Status)
	}

	note := strings.TrimSpace(in.Note)
	if in.Decision == models.DecisionReject && req.Kind != models.RequestKindDetailAccess && note == "" {
		return nil, validationf("rejection reason is required")
	}

	var (
		events []models.OrderEvent
		err    error
	)
	switch req.Kind {
	case models.RequestKindCancel, models.RequestKindReturn, models.RequestKindReplace:
		events, err = resolveCancellation(order, req, actor, in.Decision, note, now)
	case models.RequestKindDetailAccess:
		if in.Decision == models.DecisionApprove {
			order.DetailsVisible = true
			events = append(events, newEvent(models.EventDetailAccessGranted, order, actor, now))
		}
	case models.RequestKindRestoration:
		events, err = resolveRestoration(order, actor, in.Decision, note, now)
	default:
		err = validationf("unknown request kind %q", req.Kind)
	}
	if err != nil {
		return nil, err
	}

	decidedBy := actor.UserID
	decidedAt := now
	req.Status = models.RequestStatusApproved
	if in.Decision == models.DecisionReject {
		req.Status = models.RequestStatusRejected
	}
	req.AdminNote = note
	req.DecidedBy = &decidedBy
	req.DecidedAt = &decidedAt

	if err := tx.Requests().Decide(ctx, req); err != nil {
		return nil, err
	}

	order.UpdatedAt = now
	if err := tx.Orders().Update(ctx, order); err != nil {
		return nil, err
	}

	decision := newEvent(models.EventRequestApproved, order, actor, now)
	if req.Status == models.RequestStatusRejected {
		decision.Type = models.EventRequestRejected
	}
	decision.RequestID = req.ID
	for i := range events {
		events[i].RequestID = req.ID
	}
	return append([]models.OrderEvent{decision}, events...), nil
}

// resolveCancellation применяет решение по отмене, возврату или замене.
func resolveCancellation(order *models.Order, req *models.Request, actor models.Actor, decision models.Decision, note string, now time.Time) ([]models.OrderEvent, error) {
	if order.Status != models.OrderStatusCancelRequested {
		return nil, conflictf("order %d is %s, not awaiting a decision", order.ID, order.Status)
	}

	decidedBy := actor.UserID
	decidedAt := now
	order.Cancellation.DecidedBy = &decidedBy
	order.Cancellation.DecidedAt = &decidedAt

	previous := order.Cancellation.PreviousStatus
	if previous == "" {
		previous = req.PreviousStatus
	}

	if decision == models.DecisionReject {
		order.Cancellation.RejectionReason = note
		event, err := setStatus(order, previous, actor, now)
		if err != nil {
			return nil, err
		}
		return []models.OrderEvent{event}, nil
	}

	if req.Kind == models.RequestKindReplace {
		// Выдачу нового экземпляра выполняет внешняя служба исполнения заказов.
		event, err := setStatus(order, models.OrderStatusDelivered, actor, now)
		if err != nil {
			return nil, err
		}
		replaced := newEvent(models.EventReplacementApproved, order, actor, now)
		return []models.OrderEvent{event, replaced}, nil
	}

	cancelled, err := setStatus(order, models.OrderStatusCancelled, actor, now)
	if err != nil {
		return nil, err
	}
	refunding, err := setStatus(order, models.OrderStatusRefundProcessing, actor, now)
	if err != nil {
		return nil, err
	}
	order.Refund.Status = models.RefundStatusProcessing
	return []models.OrderEvent{cancelled, refunding}, nil
}

func validateRequestInput(in RequestInput) error {
	var err error
	switch in.Kind {
	case models.RequestKindCancel:
		err = models.ValidateCancellationReason(in.Reason, in.Description)
	case models.RequestKindReturn, models.RequestKindReplace:
		err = models.ValidateReturnReason(in.Reason, in.Description)
	case models.RequestKindDetailAccess:
		err = models.ValidateDetailAccessReason(in.Reason)
	}
	if err == nil {
		err = models.ValidateEvidence(in.Evidence)
	}
	if err != nil {
		return validationError(err)
	}
	return nil
}
