package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DeletionRetention — срок, в течение которого удалённый заказ можно восстановить.
	DeletionRetention = 30 * 24 * time.Hour
	// ReturnWindow — срок после доставки, в течение которого доступен возврат или замена.
	ReturnWindow = 7 * 24 * time.Hour
	// DefaultCurrency используется, если валюта заказа не указана.
	DefaultCurrency = "INR"
)

// RefundStatus описывает состояние возврата средств.
type RefundStatus string

const (
	RefundStatusNone       RefundStatus = "none"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
)

// RestorationStatus описывает состояние запроса на восстановление.
type RestorationStatus string

const (
	RestorationStatusNone     RestorationStatus = "none"
	RestorationStatusPending  RestorationStatus = "pending"
	RestorationStatusApproved RestorationStatus = "approved"
	RestorationStatusRejected RestorationStatus = "rejected"
)

// LineItem — позиция заказа, неизменяемая после оформления.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal возвращает стоимость позиции.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Address — адрес доставки.
type Address struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Milestones — отметки времени прохождения стадий.
type Milestones struct {
	ProcessingAt       *time.Time
	ShippedAt          *time.Time
	OutForDeliveryAt   *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	RefundProcessingAt *time.Time
	RefundedAt         *time.Time
}

// Tracking заполняется только при переходе в shipped.
type Tracking struct {
	CourierName       string
	TrackingNumber    string
	EstimatedDelivery *time.Time
}

// Cancellation хранит данные последнего запроса из семейства отмены (отмена, возврат, замена).
type Cancellation struct {
	Kind            RequestKind
	Reason          string
	Note            string
	Evidence        []string
	RequestedAt     *time.Time
	PreviousStatus  OrderStatus
	DecidedBy       *uuid.UUID
	DecidedAt       *time.Time
	RejectionReason string
}

// Refund хранит данные возврата средств.
type Refund struct {
	Status        RefundStatus
	Amount        *decimal.Decimal
	TransactionID string
}

// Deletion — атрибуты мягкого удаления.
type Deletion struct {
	IsDeleted    bool
	DeletedAt    *time.Time
	DeletedBy    *uuid.UUID
	ExpiresAt    *time.Time
	StatusBefore OrderStatus
}

// Restoration — атрибуты запроса на восстановление.
type Restoration struct {
	Requested       bool
	Reason          string
	Status          RestorationStatus
	RequestedBy     *uuid.UUID
	RequestedAt     *time.Time
	DecidedBy       *uuid.UUID
	DecidedAt       *time.Time
	RejectionReason string
}

// Order представляет заказ покупателя.
type Order struct {
	ID              int64
	UserID          uuid.UUID
	Items           []LineItem
	TotalAmount     decimal.Decimal
	Currency        string
	PaymentMethod   string
	ShippingAddress Address
	Status          OrderStatus

	Milestones   Milestones
	Tracking     Tracking
	Cancellation Cancellation
	Refund       Refund

	DetailsVisible bool
	Deletion       Deletion
	Restoration    Restoration

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComputeTotal суммирует стоимость позиций.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ReturnEligible истинно, если заказ доставлен не более 7 дней назад.
func (o *Order) ReturnEligible(now time.Time) bool {
	if o.Status != OrderStatusDelivered || o.Milestones.DeliveredAt == nil {
		return false
	}
	return now.Sub(*o.Milestones.DeliveredAt) <= ReturnWindow
}

// ReturnDeadline возвращает момент окончания окна возврата.
func (o *Order) ReturnDeadline() *time.Time {
	if o.Milestones.DeliveredAt == nil {
		return nil
	}
	deadline := o.Milestones.DeliveredAt.Add(ReturnWindow)
	return &deadline
}

// DeletionExpired истинно, когда срок восстановления истёк и заказ подлежит очистке.
func (o *Order) DeletionExpired(now time.Time) bool {
	return o.Deletion.IsDeleted && o.Deletion.ExpiresAt != nil && now.After(*o.Deletion.ExpiresAt)
}

// DisplayStatus — статус для отображения: у удалённого заказа это снимок до удаления.
func (o *Order) DisplayStatus() OrderStatus {
	if o.Deletion.IsDeleted && o.Deletion.StatusBefore != "" {
		return o.Deletion.StatusBefore
	}
	return o.Status
}

// Clone возвращает глубокую копию заказа.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.Cancellation.Evidence = append([]string(nil), o.Cancellation.Evidence...)
	c.Milestones = Milestones{
		ProcessingAt:       cloneTime(o.Milestones.ProcessingAt),
		ShippedAt:          cloneTime(o.Milestones.ShippedAt),
		OutForDeliveryAt:   cloneTime(o.Milestones.OutForDeliveryAt),
		DeliveredAt:        cloneTime(o.Milestones.DeliveredAt),
		CancelledAt:        cloneTime(o.Milestones.CancelledAt),
		RefundProcessingAt: cloneTime(o.Milestones.RefundProcessingAt),
		RefundedAt:         cloneTime(o.Milestones.RefundedAt),
	}
	c.Tracking.EstimatedDelivery = cloneTime(o.Tracking.EstimatedDelivery)
	c.Cancellation.RequestedAt = cloneTime(o.Cancellation.RequestedAt)
	c.Cancellation.DecidedAt = cloneTime(o.Cancellation.DecidedAt)
	c.Cancellation.DecidedBy = cloneUUID(o.Cancellation.DecidedBy)
	if o.Refund.Amount != nil {
		amount := *o.Refund.Amount
		c.Refund.Amount = &amount
	}
	c.Deletion.DeletedAt = cloneTime(o.Deletion.DeletedAt)
	c.Deletion.DeletedBy = cloneUUID(o.Deletion.DeletedBy)
	c.Deletion.ExpiresAt = cloneTime(o.Deletion.ExpiresAt)
	c.Restoration.RequestedBy = cloneUUID(o.Restoration.RequestedBy)
	c.Restoration.RequestedAt = cloneTime(o.Restoration.RequestedAt)
	c.Restoration.DecidedBy = cloneUUID(o.Restoration.DecidedBy)
	c.Restoration.DecidedAt = cloneTime(o.Restoration.DecidedAt)
	return &c
}

// OrderFilter задаёт выборку заказов. Пустые поля не ограничивают выборку.
type OrderFilter struct {
	UserID   *uuid.UUID
	Statuses []OrderStatus
	Limit    int
	Offset   int
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
