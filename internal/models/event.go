package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла заказа.
type EventType string

const (
	EventOrderCreated         EventType = "order.created"
	EventStatusChanged        EventType = "order.status_changed"
	EventRequestSubmitted     EventType = "request.submitted"
	EventRequestApproved      EventType = "request.approved"
	EventRequestRejected      EventType = "request.rejected"
	EventReplacementApproved  EventType = "order.replacement_approved"
	EventRefundCompleted      EventType = "order.refund_completed"
	EventOrderDeleted         EventType = "order.deleted"
	EventOrderRestored        EventType = "order.restored"
	EventOrderPurged          EventType = "order.purged"
	EventDetailAccessGranted  EventType = "order.detail_access_granted"
	EventRestorationRequested EventType = "order.restoration_requested"
)

// OrderEvent уходит во внешний приёмник уведомлений.
type OrderEvent struct {
	Type       EventType   `json:"type"`
	OrderID    int64       `json:"order_id"`
	RequestID  int64       `json:"request_id,omitempty"`
	FromStatus OrderStatus `json:"from_status,omitempty"`
	ToStatus   OrderStatus `json:"to_status,omitempty"`
	ActorID    uuid.UUID   `json:"actor_id"`
	ActorRole  Role        `json:"actor_role"`
	OccurredAt time.Time   `json:"occurred_at"`
}
