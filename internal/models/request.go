package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestKind — вид запроса покупателя, требующего решения администратора.
type RequestKind string

const (
	RequestKindCancel       RequestKind = "cancel"
	RequestKindReturn       RequestKind = "return"
	RequestKindReplace      RequestKind = "replace"
	RequestKindDetailAccess RequestKind = "detail_access"
	RequestKindRestoration  RequestKind = "restoration"
)

// RequestSlot группирует виды запросов: на заказ допускается один открытый запрос в слоте.
type RequestSlot string

const (
	RequestSlotCancellation RequestSlot = "cancellation"
	RequestSlotDetailAccess RequestSlot = "detail_access"
	RequestSlotRestoration  RequestSlot = "restoration"
)

// RequestStatus — состояние запроса.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Decision — решение администратора.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid проверяет вид запроса.
func (k RequestKind) Valid() bool {
	switch k {
	case RequestKindCancel, RequestKindReturn, RequestKindReplace, RequestKindDetailAccess, RequestKindRestoration:
		return true
	}
	return false
}

// Slot возвращает слот, в котором живёт запрос данного вида.
func (k RequestKind) Slot() RequestSlot {
	switch k {
	case RequestKindDetailAccess:
		return RequestSlotDetailAccess
	case RequestKindRestoration:
		return RequestSlotRestoration
	default:
		return RequestSlotCancellation
	}
}

// Valid проверяет статус запроса.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// Valid проверяет решение.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// Request — запрос покупателя по заказу.
type Request struct {
	ID             int64
	OrderID        int64
	Kind           RequestKind
	RequesterID    uuid.UUID
	Reason         string
	Description    string
	Evidence       []string
	Status         RequestStatus
	PreviousStatus OrderStatus
	AdminNote      string
	DecidedBy      *uuid.UUID
	DecidedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone возвращает копию запроса.
func (r *Request) Clone() *Request {
	c := *r
	c.Evidence = append([]string(nil), r.Evidence...)
	c.DecidedBy = cloneUUID(r.DecidedBy)
	c.DecidedAt = cloneTime(r.DecidedAt)
	return &c
}

// RequestFilter задаёт выборку запросов.
type RequestFilter struct {
	OrderID     *int64
	RequesterID *uuid.UUID
	Kind        *RequestKind
	Status      *RequestStatus
	Limit       int
	Offset      int
}
