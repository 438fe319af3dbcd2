package services

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// memStore — хранилище в памяти для тестов движка. Транзакции выполняются
// над копией данных под общей блокировкой и откатываются при ошибке.
type memStore struct {
	mu   sync.Mutex
	data *memData

	txCount int
}

type memData struct {
	orders        map[int64]*models.Order
	requests      map[int64]*models.Request
	nextOrderID   int64
	nextRequestID int64
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		orders:   make(map[int64]*models.Order),
		requests: make(map[int64]*models.Request),
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		orders:        make(map[int64]*models.Order, len(d.orders)),
		requests:      make(map[int64]*models.Request, len(d.requests)),
		nextOrderID:   d.nextOrderID,
		nextRequestID: d.nextRequestID,
	}
	for id, o := range d.orders {
		c.orders[id] = o.Clone()
	}
	for id, r := range d.requests {
		c.requests[id] = r.Clone()
	}
	return c
}

func (s *memStore) Orders() storage.OrderStorage {
	return &memOrders{store: s}
}

func (s *memStore) Requests() storage.RequestStorage {
	return &memRequests{store: s}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	snapshot := s.data.clone()
	if err := fn(ctx, memTx{data: snapshot}); err != nil {
		return err
	}
	s.data = snapshot
	return nil
}

// order возвращает копию сохранённого заказа в обход движка.
func (s *memStore) order(id int64) *models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data.orders[id]
	if !ok {
		return nil
	}
	return o.Clone()
}

// put перезаписывает заказ в обход движка, чтобы подготовить состояние теста.
func (s *memStore) put(order *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.orders[order.ID] = order.Clone()
}

func (s *memStore) requestsOf(orderID int64) []*models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memRequestsView{data: s.data}.list(models.RequestFilter{OrderID: &orderID})
}

type memTx struct {
	data *memData
}

func (t memTx) Orders() storage.OrderStorage {
	return memOrdersView{data: t.data}
}

func (t memTx) Requests() storage.RequestStorage {
	return memRequestsView{data: t.data}
}

// memOrders и memRequests работают вне транзакции и берут блокировку на каждый вызов.
type memOrders struct {
	store *memStore
}

func (o *memOrders) view() (memOrdersView, func()) {
	o.store.mu.Lock()
	return memOrdersView{data: o.store.data}, o.store.mu.Unlock
}

func (o *memOrders) Create(ctx context.Context, order *models.Order) error {
	v, unlock := o.view()
	defer unlock()
	return v.Create(ctx, order)
}

func (o *memOrders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	v, unlock := o.view()
	defer unlock()
	return v.GetByID(ctx, id)
}

func (o *memOrders) Lock(ctx context.Context, id int64) (*models.Order, error) {
	v, unlock := o.view()
	defer unlock()
	return v.Lock(ctx, id)
}

func (o *memOrders) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	v, unlock := o.view()
	defer unlock()
	return v.List(ctx, filter)
}

func (o *memOrders) ListDeleted(ctx context.Context, userID *uuid.UUID, now time.Time) ([]*models.Order, error) {
	v, unlock := o.view()
	defer unlock()
	return v.ListDeleted(ctx, userID, now)
}

func (o *memOrders) ListExpired(ctx context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	v, unlock := o.view()
	defer unlock()
	return v.ListExpired(ctx, now, afterID, limit)
}

func (o *memOrders) Update(ctx context.Context, order *models.Order) error {
	v, unlock := o.view()
	defer unlock()
	return v.Update(ctx, order)
}

func (o *memOrders) Purge(ctx context.Context, id int64, now time.Time) error {
	v, unlock := o.view()
	defer unlock()
	return v.Purge(ctx, id, now)
}

type memRequests struct {
	store *memStore
}

func (r *memRequests) view() (memRequestsView, func()) {
	r.store.mu.Lock()
	return memRequestsView{data: r.store.data}, r.store.mu.Unlock
}

func (r *memRequests) Create(ctx context.Context, req *models.Request) error {
	v, unlock := r.view()
	defer unlock()
	return v.Create(ctx, req)
}

func (r *memRequests) GetByID(ctx context.Context, id int64) (*models.Request, error) {
	v, unlock := r.view()
	defer unlock()
	return v.GetByID(ctx, id)
}

func (r *memRequests) GetPending(ctx context.Context, orderID int64, slot models.RequestSlot) (*models.Request, error) {
	v, unlock := r.view()
	defer unlock()
	return v.GetPending(ctx, orderID, slot)
}

func (r *memRequests) List(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	v, unlock := r.view()
	defer unlock()
	return v.List(ctx, filter)
}

func (r *memRequests) Decide(ctx context.Context, req *models.Request) error {
	v, unlock := r.view()
	defer unlock()
	return v.Decide(ctx, req)
}

type memOrdersView struct {
	data *memData
}

func (v memOrdersView) Create(_ context.Context, order *models.Order) error {
	v.data.nextOrderID++
	order.ID = v.data.nextOrderID
	order.Version = 1
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	v.data.orders[order.ID] = order.Clone()
	return nil
}

func (v memOrdersView) GetByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := v.data.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (v memOrdersView) Lock(ctx context.Context, id int64) (*models.Order, error) {
	return v.GetByID(ctx, id)
}

func (v memOrdersView) List(_ context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	orders := v.filter(func(o *models.Order) bool {
		if o.Deletion.IsDeleted {
			return false
		}
		if filter.UserID != nil && o.UserID != *filter.UserID {
			return false
		}
		return len(filter.Statuses) == 0 || lo.Contains(filter.Statuses, o.Status)
	})
	slices.SortFunc(orders, func(a, b *models.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(orders, filter.Limit, filter.Offset), nil
}

func (v memOrdersView) ListDeleted(_ context.Context, userID *uuid.UUID, now time.Time) ([]*models.Order, error) {
	orders := v.filter(func(o *models.Order) bool {
		if !o.Deletion.IsDeleted || o.Deletion.ExpiresAt.Before(now) {
			return false
		}
		return userID == nil || o.UserID == *userID
	})
	slices.SortFunc(orders, func(a, b *models.Order) int {
		if c := b.Deletion.DeletedAt.Compare(*a.Deletion.DeletedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return orders, nil
}

func (v memOrdersView) ListExpired(_ context.Context, now time.Time, afterID int64, limit int) ([]int64, error) {
	orders := v.filter(func(o *models.Order) bool {
		return o.ID > afterID && o.Deletion.IsDeleted && o.Deletion.ExpiresAt.Before(now)
	})
	slices.SortFunc(orders, func(a, b *models.Order) int {
		return cmp.Compare(a.ID, b.ID)
	})
	ids := lo.Map(orders, func(o *models.Order, _ int) int64 { return o.ID })
	return page(ids, limit, 0), nil
}

func (v memOrdersView) Update(_ context.Context, order *models.Order) error {
	stored, ok := v.data.orders[order.ID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return storage.ErrVersionConflict
	}
	order.Version++
	v.data.orders[order.ID] = order.Clone()
	return nil
}

func (v memOrdersView) Purge(_ context.Context, id int64, now time.Time) error {
	o, ok := v.data.orders[id]
	if !ok || !o.Deletion.IsDeleted || !o.Deletion.ExpiresAt.Before(now) {
		return storage.ErrOrderNotFound
	}
	delete(v.data.orders, id)
	for reqID, req := range v.data.requests {
		if req.OrderID == id {
			delete(v.data.requests, reqID)
		}
	}
	return nil
}

func (v memOrdersView) filter(keep func(o *models.Order) bool) []*models.Order {
	var orders []*models.Order
	for _, o := range v.data.orders {
		if keep(o) {
			orders = append(orders, o.Clone())
		}
	}
	return orders
}

type memRequestsView struct {
	data *memData
}

func (v memRequestsView) Create(_ context.Context, req *models.Request) error {
	for _, existing := range v.data.requests {
		if existing.OrderID == req.OrderID &&
			existing.Kind.Slot() == req.Kind.Slot() &&
			existing.Status == models.RequestStatusPending {
			return storage.ErrPendingRequestExists
		}
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	v.data.nextRequestID++
	req.ID = v.data.nextRequestID
	req.UpdatedAt = req.CreatedAt
	v.data.requests[req.ID] = req.Clone()
	return nil
}

func (v memRequestsView) GetByID(_ context.Context, id int64) (*models.Request, error) {
	r, ok := v.data.requests[id]
	if !ok {
		return nil, storage.ErrRequestNotFound
	}
	return r.Clone(), nil
}

func (v memRequestsView) GetPending(_ context.Context, orderID int64, slot models.RequestSlot) (*models.Request, error) {
	for _, r := range v.data.requests {
		if r.OrderID == orderID && r.Kind.Slot() == slot && r.Status == models.RequestStatusPending {
			return r.Clone(), nil
		}
	}
	return nil, storage.ErrRequestNotFound
}

func (v memRequestsView) List(_ context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	return page(v.list(filter), filter.Limit, filter.Offset), nil
}

func (v memRequestsView) list(filter models.RequestFilter) []*models.Request {
	var requests []*models.Request
	for _, r := range v.data.requests {
		switch {
		case filter.OrderID != nil && r.OrderID != *filter.OrderID,
			filter.RequesterID != nil && r.RequesterID != *filter.RequesterID,
			filter.Kind != nil && r.Kind != *filter.Kind,
			filter.Status != nil && r.Status != *filter.Status:
			continue
		}
		requests = append(requests, r.Clone())
	}
	slices.SortFunc(requests, func(a, b *models.Request) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return requests
}

func (v memRequestsView) Decide(_ context.Context, req *models.Request) error {
	stored, ok := v.data.requests[req.ID]
	if !ok {
		return storage.ErrRequestNotFound
	}
	if stored.Status != models.RequestStatusPending {
		return storage.ErrRequestAlreadyDecided
	}
	if req.DecidedAt != nil {
		req.UpdatedAt = *req.DecidedAt
	}
	stored.Status = req.Status
	stored.AdminNote = req.AdminNote
	stored.DecidedBy = req.DecidedBy
	stored.DecidedAt = req.DecidedAt
	stored.UpdatedAt = req.UpdatedAt
	v.data.requests[req.ID] = stored.Clone()
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
