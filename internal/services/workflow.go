package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/shopspring/decimal"
)

// WorkflowService — движок жизненного цикла заказа: автомат состояний,
// запросы покупателей, решения администратора, мягкое удаление и очистка.
type WorkflowService interface {
	CreateOrder(ctx context.Context, actor models.Actor, in CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, actor models.Actor, filter models.OrderFilter) ([]*models.Order, error)
	ReturnEligibility(ctx context.Context, actor models.Actor, orderID int64) (*Eligibility, error)
	Transition(ctx context.Context, actor models.Actor, orderID int64, in TransitionInput) (*models.Order, error)
	CompleteRefund(ctx context.Context, actor models.Actor, orderID int64, in RefundInput) (*models.Order, error)

	SubmitRequest(ctx context.Context, actor models.Actor, orderID int64, in RequestInput) (*models.Request, error)
	DecideRequest(ctx context.Context, actor models.Actor, requestID int64, in DecisionInput) (*models.Request, error)
	ListRequests(ctx context.Context, actor models.Actor, filter models.RequestFilter) ([]*models.Request, error)

	SoftDelete(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error)
	SubmitRestoration(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Request, error)
	DecideRestoration(ctx context.Context, actor models.Actor, orderID int64, in DecisionInput) (*models.Request, error)
	ListDeleted(ctx context.Context, actor models.Actor) ([]*models.Order, error)
	ExpiredOrders(ctx context.Context, actor models.Actor, afterID int64, limit int) ([]int64, error)
	Purge(ctx context.Context, actor models.Actor, orderID int64) error
}

// Authorizer решает, может ли роль выполнить действие над ресурсом.
type Authorizer interface {
	Allowed(role models.Role, resource, action string) (bool, error)
}

// CreateOrderInput — данные нового заказа.
type CreateOrderInput struct {
	Items           []models.LineItem
	Currency        string
	PaymentMethod   string
	ShippingAddress models.Address
}

// TransitionInput — целевой статус прямого пути и данные доставки для shipped.
type TransitionInput struct {
	To                models.OrderStatus
	TrackingNumber    string
	CourierName       string
	EstimatedDelivery *time.Time
}

// RequestInput — запрос покупателя. Для возврата и замены Reason — код категории.
type RequestInput struct {
	Kind        models.RequestKind
	Reason      string
	Description string
	Evidence    []string
}

// DecisionInput — решение администратора. Note обязателен при отклонении отмены,
// возврата, замены и восстановления.
type DecisionInput struct {
	Decision models.Decision
	Note     string
}

// RefundInput — подтверждение возврата средств от платёжной системы.
// Пустой Amount означает полную сумму заказа.
type RefundInput struct {
	Amount        *decimal.Decimal
	TransactionID string
}

// Eligibility — доступность возврата или замены.
type Eligibility struct {
	Eligible bool
	Deadline *time.Time
}

// WorkflowOption настраивает WorkflowServiceImpl.
type WorkflowOption func(*WorkflowServiceImpl)

// WithClock подменяет источник текущего времени.
func WithClock(clock func() time.Time) WorkflowOption {
	return func(s *WorkflowServiceImpl) {
		s.clock = clock
	}
}

// WorkflowServiceImpl реализует WorkflowService поверх транзакционного хранилища.
type WorkflowServiceImpl struct {
	store    storage.Store
	policy   Authorizer
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

// NewWorkflowService создаёт движок заказов.
func NewWorkflowService(store storage.Store, policy Authorizer, notifier Notifier, logger *slog.Logger, opts ...WorkflowOption) *WorkflowServiceImpl {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	s := &WorkflowServiceImpl{
		store:    store,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WorkflowServiceImpl) now() time.Time {
	return s.clock()
}

func (s *WorkflowServiceImpl) authorize(actor models.Actor, resource, action string) error {
	allowed, err := s.policy.Allowed(actor.Role, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not %s %s", ErrForbidden, actor.Role, action, resource)
	}
	return nil
}

// checkOwner пропускает администратора и системные задачи, покупателю доступны только свои заказы.
func checkOwner(actor models.Actor, order *models.Order) error {
	if actor.Role == models.RoleCustomer && order.UserID != actor.UserID {
		return fmt.Errorf("%w: order %d belongs to another user", ErrForbidden, order.ID)
	}
	return nil
}

// txFunc выполняется внутри транзакции и возвращает события для отправки после фиксации.
type txFunc func(ctx context.Context, tx storage.Repositories, now time.Time) ([]models.OrderEvent, error)

// execute выполняет fn в одной транзакции и публикует события только после фиксации.
func (s *WorkflowServiceImpl) execute(ctx context.Context, fn txFunc) error {
	now := s.now()

	var events []models.OrderEvent
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Repositories) error {
		var err error
		events, err = fn(ctx, tx, now)
		return err
	})
	if err != nil {
		return mapStorageError(err)
	}

	s.publish(ctx, events)
	return nil
}

// orderFunc изменяет заблокированный заказ.
type orderFunc func(ctx context.Context, tx storage.Repositories, order *models.Order, now time.Time) ([]models.OrderEvent, error)

// mutateOrder блокирует заказ, применяет fn и сохраняет его с проверкой версии.
func (s *WorkflowServiceImpl) mutateOrder(ctx context.Context, orderID int64, fn orderFunc) (*models.Order, error) {
	var result *models.Order
	err := s.execute(ctx, func(ctx context.Context, tx storage.Repositories, now time.Time) ([]models.OrderEvent, error) {
		order, err := tx.Orders().Lock(ctx, orderID)
		if err != nil {
			return nil, err
		}

		events, err := fn(ctx, tx, order, now)
		if err != nil {
			return nil, err
		}

		order.UpdatedAt = now
		if err := tx.Orders().Update(ctx, order); err != nil {
			return nil, err
		}
		result = order
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *WorkflowServiceImpl) publish(ctx context.Context, events []models.OrderEvent) {
	for _, event := range events {
		s.notifier.Notify(ctx, event)
	}
}

func newEvent(typ models.EventType, order *models.Order, actor models.Actor, now time.Time) models.OrderEvent {
	return models.OrderEvent{
		Type:       typ,
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   order.Status,
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		OccurredAt: now,
	}
}

// setStatus переводит заказ по ребру автомата, ставит отметку времени стадии
// и возвращает событие смены статуса.
func setStatus(order *models.Order, to models.OrderStatus, actor models.Actor, now time.Time) (models.OrderEvent, error) {
	from := order.Status
	if !models.CanTransition(from, to) {
		return models.OrderEvent{}, invalidTransition(from, to)
	}

	order.Status = to
	stampMilestone(&order.Milestones, to, now)

	event := newEvent(models.EventStatusChanged, order, actor, now)
	event.FromStatus = from
	return event, nil
}

// stampMilestone фиксирует время входа в стадию. Возврат из cancel_requested
// в прямой статус отметку не перезаписывает.
func stampMilestone(m *models.Milestones, status models.OrderStatus, now time.Time) {
	var slot **time.Time
	switch status {
	case models.OrderStatusProcessing:
		slot = &m.ProcessingAt
	case models.OrderStatusShipped:
		slot = &m.ShippedAt
	case models.OrderStatusOutForDelivery:
		slot = &m.OutForDeliveryAt
	case models.OrderStatusDelivered:
		slot = &m.DeliveredAt
	case models.OrderStatusCancelled:
		slot = &m.CancelledAt
	case models.OrderStatusRefundProcessing:
		slot = &m.RefundProcessingAt
	case models.OrderStatusRefunded:
		slot = &m.RefundedAt
	default:
		return
	}
	if *slot == nil {
		t := now
		*slot = &t
	}
}
