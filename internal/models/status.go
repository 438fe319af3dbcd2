package models

import (
	"errors"

	"github.com/samber/lo"
)

// OrderStatus описывает стадию жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusOutForDelivery   OrderStatus = "out_for_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelRequested  OrderStatus = "cancel_requested"
	OrderStatusCancelled        OrderStatus = "cancelled"
	OrderStatusRefundProcessing OrderStatus = "refund_processing"
	OrderStatusRefunded         OrderStatus = "refunded"
)

// ErrUnknownStatus возвращается при разборе неизвестного статуса.
var ErrUnknownStatus = errors.New("unknown order status")

// forwardPipeline — прямой путь исполнения заказа, строго по порядку.
var forwardPipeline = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// orderTransitions — все допустимые рёбра автомата состояний.
// Из cancel_requested можно вернуться в любой прямой статус (отклонение запроса),
// фактический целевой статус берётся из сохранённого снимка.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:          {OrderStatusProcessing, OrderStatusCancelRequested},
	OrderStatusProcessing:       {OrderStatusShipped, OrderStatusCancelRequested},
	OrderStatusShipped:          {OrderStatusOutForDelivery, OrderStatusCancelRequested},
	OrderStatusOutForDelivery:   {OrderStatusDelivered, OrderStatusCancelRequested},
	OrderStatusDelivered:        {OrderStatusCancelRequested},
	OrderStatusCancelRequested:  append([]OrderStatus{OrderStatusCancelled}, forwardPipeline...),
	OrderStatusCancelled:        {OrderStatusRefundProcessing},
	OrderStatusRefundProcessing: {OrderStatusRefunded},
}

// ParseOrderStatus проверяет строку и возвращает статус.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.Valid() {
		return "", ErrUnknownStatus
	}
	return status, nil
}

// OrderStatuses возвращает все известные статусы.
func OrderStatuses() []OrderStatus {
	return append(append([]OrderStatus{}, forwardPipeline...),
		OrderStatusCancelRequested,
		OrderStatusCancelled,
		OrderStatusRefundProcessing,
		OrderStatusRefunded,
	)
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	return lo.Contains(OrderStatuses(), s)
}

// IsForward — статус прямого пути исполнения.
func (s OrderStatus) IsForward() bool {
	return lo.Contains(forwardPipeline, s)
}

// Cancellable — заказ ещё не доставлен, покупатель может отменить его напрямую.
func (s OrderStatus) Cancellable() bool {
	return s.IsForward() && s != OrderStatusDelivered
}

// NextForward возвращает следующий статус прямого пути.
func (s OrderStatus) NextForward() (OrderStatus, bool) {
	idx := lo.IndexOf(forwardPipeline, s)
	if idx < 0 || idx == len(forwardPipeline)-1 {
		return "", false
	}
	return forwardPipeline[idx+1], true
}

// CanTransition проверяет наличие ребра from → to.
func CanTransition(from, to OrderStatus) bool {
	return lo.Contains(orderTransitions[from], to)
}

// NextStatuses возвращает соседей статуса в автомате.
func NextStatuses(from OrderStatus) []OrderStatus {
	return append([]OrderStatus{}, orderTransitions[from]...)
}
