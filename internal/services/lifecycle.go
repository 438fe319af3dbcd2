package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/samber/lo"
	"golang.org/x/text/currency"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CreateOrder оформляет заказ покупателя в статусе pending.
func (s *WorkflowServiceImpl) CreateOrder(ctx context.Context, actor models.Actor, in CreateOrderInput) (*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionCreate); err != nil {
		return nil, err
	}

	currencyCode, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	if err := validateAddress(in.ShippingAddress); err != nil {
		return nil, err
	}
	paymentMethod := strings.TrimSpace(in.PaymentMethod)
	if paymentMethod == "" {
		return nil, validationf("payment method is required")
	}

	now := s.now()
	order := &models.Order{
		UserID:          actor.UserID,
		Items:           append([]models.LineItem(nil), in.Items...),
		TotalAmount:     models.ComputeTotal(in.Items).Round(2),
		Currency:        currencyCode,
		PaymentMethod:   paymentMethod,
		ShippingAddress: in.ShippingAddress,
		Status:          models.OrderStatusPending,
		Refund:          models.Refund{Status: models.RefundStatusNone},
		Restoration:     models.Restoration{Status: models.RestorationStatusNone},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, []models.OrderEvent{newEvent(models.EventOrderCreated, order, actor, now)})
	return order, nil
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *WorkflowServiceImpl) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionRead); err != nil {
		return nil, err
	}

	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, mapStorageError(err)
	}
	if err := checkOwner(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders возвращает активные заказы. Покупатель видит только свои.
func (s *WorkflowServiceImpl) ListOrders(ctx context.Context, actor models.Actor, filter models.OrderFilter) ([]*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionList); err != nil {
		return nil, err
	}

	if actor.Role == models.RoleCustomer {
		filter.UserID = &actor.UserID
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, validationError(fmt.Errorf("%w: %q", models.ErrUnknownStatus, status))
		}
	}
	if filter.Offset < 0 {
		return nil, validationf("offset must not be negative")
	}
	filter.Limit = pageSize(filter.Limit)

	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ReturnEligibility сообщает, доступны ли возврат или замена прямо сейчас.
func (s *WorkflowServiceImpl) ReturnEligibility(ctx context.Context, actor models.Actor, orderID int64) (*Eligibility, error) {
	order, err := s.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	return &Eligibility{
		Eligible: !order.Deletion.IsDeleted && order.ReturnEligible(s.now()),
		Deadline: order.ReturnDeadline(),
	}, nil
}

// Transition продвигает заказ на следующий статус прямого пути.
// Для shipped обязательны трек-номер и служба доставки.
func (s *WorkflowServiceImpl) Transition(ctx context.Context, actor models.Actor, orderID int64, in TransitionInput) (*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionTransition); err != nil {
		return nil, err
	}

	if !in.To.Valid() {
		return nil, validationError(fmt.Errorf("%w: %q", models.ErrUnknownStatus, in.To))
	}
	trackingNumber := strings.TrimSpace(in.TrackingNumber)
	courierName := strings.TrimSpace(in.CourierName)
	if in.To == models.OrderStatusShipped && (trackingNumber == "" || courierName == "") {
		return nil, validationf("tracking number and courier name are required to ship")
	}

	return s.mutateOrder(ctx, orderID, func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error) {
		if order.Deletion.IsDeleted {
			return nil, conflictf("order %d is deleted", order.ID)
		}
		next, ok := order.Status.NextForward()
		if !ok || next != in.To {
			return nil, invalidTransition(order.Status, in.To)
		}

		event, err := setStatus(order, in.To, actor, now)
		if err != nil {
			return nil, err
		}
		if in.To == models.OrderStatusShipped {
			order.Tracking = models.Tracking{
				CourierName:       courierName,
				TrackingNumber:    trackingNumber,
				EstimatedDelivery: in.EstimatedDelivery,
			}
		}
		return []models.OrderEvent{event}, nil
	})
}

// CompleteRefund фиксирует завершение возврата средств: refund_processing → refunded.
func (s *WorkflowServiceImpl) CompleteRefund(ctx context.Context, actor models.Actor, orderID int64, in RefundInput) (*models.Order, error) {
	if err := s.authorize(actor, auth.ResourceOrder, auth.ActionRefund); err != nil {
		return nil, err
	}

	transactionID := strings.TrimSpace(in.TransactionID)
	if transactionID == "" {
		return nil, validationf("transaction id is required")
	}

	return s.mutateOrder(ctx, orderID, func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error) {
		if order.Status != models.OrderStatusRefundProcessing {
			return nil, invalidTransition(order.Status, models.OrderStatusRefunded)
		}

		amount := order.TotalAmount
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.Equal(amount.Round(2)) {
			return nil, validationf("refund amount %s has more than two decimal places", amount)
		}
		if !amount.IsPositive() || amount.GreaterThan(order.TotalAmount) {
			return nil, validationf("refund amount must be within (0, %s]", order.TotalAmount.StringFixed(2))
		}

		statusEvent, err := setStatus(order, models.OrderStatusRefunded, actor, now)
		if err != nil {
			return nil, err
		}
		order.Refund = models.Refund{
			Status:        models.RefundStatusCompleted,
			Amount:        &amount,
			TransactionID: transactionID,
		}

		refunded := newEvent(models.EventRefundCompleted, order, actor, now)
		return []models.OrderEvent{statusEvent, refunded}, nil
	})
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", validationf("unknown currency %q", code)
	}
	return unit.String(), nil
}

func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return validationf("order must contain at least one item")
	}
	for i, item := range items {
		switch {
		case strings.TrimSpace(item.ProductID) == "":
			return validationf("item %d: product id is required", i)
		case item.Quantity <= 0:
			return validationf("item %d: quantity must be positive", i)
		case item.UnitPrice.IsNegative():
			return validationf("item %d: unit price must not be negative", i)
		}
	}
	return nil
}

func validateAddress(addr models.Address) error {
	fields := []lo.Tuple2[string, string]{
		lo.T2("full_name", addr.FullName),
		lo.T2("line1", addr.Line1),
		lo.T2("city", addr.City),
		lo.T2("postal_code", addr.PostalCode),
		lo.T2("country", addr.Country),
	}
	missing := lo.FilterMap(fields, func(f lo.Tuple2[string, string], _ int) (string, bool) {
		return f.A, strings.TrimSpace(f.B) == ""
	})
	if len(missing) > 0 {
		return validationf("shipping address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}
