package handlers

import (
	"context"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/services"
)

// mockWorkflow - мок движка заказов для тестирования handlers
type mockWorkflow struct {
	CreateFunc            func(ctx context.Context, actor models.Actor, in services.CreateOrderInput) (*models.Order, error)
	GetFunc               func(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	ListFunc              func(ctx context.Context, actor models.Actor, filter models.OrderFilter) ([]*models.Order, error)
	EligibilityFunc       func(ctx context.Context, actor models.Actor, orderID int64) (*services.Eligibility, error)
	TransitionFunc        func(ctx context.Context, actor models.Actor, orderID int64, in services.TransitionInput) (*models.Order, error)
	RefundFunc            func(ctx context.Context, actor models.Actor, orderID int64, in services.RefundInput) (*models.Order, error)
	SubmitFunc            func(ctx context.Context, actor models.Actor, orderID int64, in services.RequestInput) (*models.Request, error)
	DecideFunc            func(ctx context.Context, actor models.Actor, requestID int64, in services.DecisionInput) (*models.Request, error)
	ListRequestsFunc      func(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]*models.Request, error)
	DeleteFunc            func(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	RestoreFunc           func(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Request, error)
	DecideRestorationFunc func(ctx context.Context, actor models.Actor, orderID int64, in services.DecisionInput) (*models.Request, error)
	ListDeletedFunc       func(ctx context.Context, actor models.Actor) ([]*models.Order, error)
}

var _ services.WorkflowService = (*mockWorkflow)(nil)

func (m *mockWorkflow) CreateOrder(ctx context.Context, actor models.Actor, in services.CreateOrderInput) (*models.Order, error) {
	return m.CreateFunc(ctx, actor, in)
}

func (m *mockWorkflow) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	return m.GetFunc(ctx, actor, orderID)
}

func (m *mockWorkflow) ListOrders(ctx context.Context, actor models.Actor, filter models.OrderFilter) ([]*models.Order, error) {
	return m.ListFunc(ctx, actor, filter)
}

func (m *mockWorkflow) ReturnEligibility(ctx context.Context, actor models.Actor, orderID int64) (*services.Eligibility, error) {
	return m.EligibilityFunc(ctx, actor, orderID)
}

func (m *mockWorkflow) Transition(ctx context.Context, actor models.Actor, orderID int64, in services.TransitionInput) (*models.Order, error) {
	return m.TransitionFunc(ctx, actor, orderID, in)
}

func (m *mockWorkflow) CompleteRefund(ctx context.Context, actor models.Actor, orderID int64, in services.RefundInput) (*models.Order, error) {
	return m.RefundFunc(ctx, actor, orderID, in)
}

func (m *mockWorkflow) SubmitRequest(ctx context.Context, actor models.Actor, orderID int64, in services.RequestInput) (*models.Request, error) {
	return m.SubmitFunc(ctx, actor, orderID, in)
}

func (m *mockWorkflow) DecideRequest(ctx context.Context, actor models.Actor, requestID int64, in services.DecisionInput) (*models.Request, error) {
	return m.DecideFunc(ctx, actor, requestID, in)
}

func (m *mockWorkflow) ListRequests(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]*models.Request, error) {
	return m.ListRequestsFunc(ctx, actor, filter)
}

func (m *mockWorkflow) SoftDelete(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	return m.DeleteFunc(ctx, actor, orderID)
}

func (m *mockWorkflow) SubmitRestoration(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Request, error) {
	return m.RestoreFunc(ctx, actor, orderID, reason)
}

func (m *mockWorkflow) DecideRestoration(ctx context.Context, actor models.Actor, orderID int64, in services.DecisionInput) (*models.Request, error) {
	return m.DecideRestorationFunc(ctx, actor, orderID, in)
}

func (m *mockWorkflow) ListDeleted(ctx context.Context, actor models.Actor) ([]*models.Order, error) {
	return m.ListDeletedFunc(ctx, actor)
}

func (m *mockWorkflow) ExpiredOrders(ctx context.Context, actor models.Actor, afterID int64, limit int) ([]int64, error) {
	return nil, services.ErrForbidden
}

func (m *mockWorkflow) Purge(ctx context.Context, actor models.Actor, orderID int64) error {
	return services.ErrForbidden
}
