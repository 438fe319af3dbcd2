package services

import (
	"sync"
	"testing"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelBeforeShipment(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()
	f.advanceTo(order.ID, models.OrderStatusProcessing)
	f.notifier.reset()

	req, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind:   models.RequestKindCancel,
		Reason: "Ordered by mistake",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, models.OrderStatusProcessing, req.PreviousStatus)

	requested := f.store.order(order.ID)
	assert.Equal(t, models.OrderStatusCancelRequested, requested.Status)
	assert.Equal(t, models.OrderStatusProcessing, requested.Cancellation.PreviousStatus)
	assert.Equal(t, "Ordered by mistake", requested.Cancellation.Reason)
	require.NotNil(t, requested.Cancellation.RequestedAt)

	f.advance(time.Hour)
	decided, err := f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, f.admin.UserID, *decided.DecidedBy)

	cancelled := f.store.order(order.ID)
	assert.Equal(t, models.OrderStatusRefundProcessing, cancelled.Status)
	assert.Equal(t, models.RefundStatusProcessing, cancelled.Refund.Status)
	require.NotNil(t, cancelled.Milestones.CancelledAt)
	assert.Equal(t, f.clock(), *cancelled.Milestones.CancelledAt)
	assert.NotNil(t, cancelled.Milestones.RefundProcessingAt)

	assert.Equal(t, []models.EventType{
		models.EventStatusChanged,
		models.EventRequestSubmitted,
		models.EventRequestApproved,
		models.EventStatusChanged,
		models.EventStatusChanged,
	}, f.notifier.types())

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionReject, Note: "late"})
	assert.ErrorIs(t, err, ErrConflict, "a request is decided once")
}

func TestReturnWithinWindowRejected(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()
	f.advanceTo(order.ID, models.OrderStatusDelivered)
	deliveredAt := *f.store.order(order.ID).Milestones.DeliveredAt

	f.advance(3 * 24 * time.Hour)
	req, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind:        models.RequestKindReturn,
		Reason:      "damaged",
		Description: "Product arrived damaged",
		Evidence:    []string{" https://cdn.example.com/damage.jpg\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelRequested, f.store.order(order.ID).Status)
	assert.Equal(t, []string{"https://cdn.example.com/damage.jpg"}, req.Evidence)
	assert.Equal(t, req.Evidence, f.store.order(order.ID).Cancellation.Evidence)

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionReject})
	require.ErrorIs(t, err, ErrValidationFailed, "rejection needs a reason")

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionReject, Note: "No visible damage on photos"})
	require.NoError(t, err)

	reverted := f.store.order(order.ID)
	assert.Equal(t, models.OrderStatusDelivered, reverted.Status)
	assert.Equal(t, deliveredAt, *reverted.Milestones.DeliveredAt, "rejection keeps the original delivery time")
	assert.Equal(t, "No visible damage on photos", reverted.Cancellation.RejectionReason)
	assert.Equal(t, models.RefundStatusNone, reverted.Refund.Status)

	f.advance(5 * 24 * time.Hour)
	_, err = f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind:   models.RequestKindReturn,
		Reason: "defective",
	})
	assert.ErrorIs(t, err, ErrWindowExpired)
}

func TestReplaceApproval(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()
	f.advanceTo(order.ID, models.OrderStatusDelivered)

	req, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind:        models.RequestKindReplace,
		Reason:      "wrong_item",
		Description: "Wrong size",
	})
	require.NoError(t, err)
	f.notifier.reset()

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionApprove})
	require.NoError(t, err)

	replaced := f.store.order(order.ID)
	assert.Equal(t, models.OrderStatusDelivered, replaced.Status)
	assert.Equal(t, models.RefundStatusNone, replaced.Refund.Status)
	assert.Contains(t, f.notifier.types(), models.EventReplacementApproved)
}

func TestSubmitRequestRules(t *testing.T) {
	tests := []struct {
		name    string
		status  models.OrderStatus
		actor   func(f *fixture) models.Actor
		input   RequestInput
		wantErr error
	}{
		{
			name:    "unknown cancellation reason",
			status:  models.OrderStatusPending,
			input:   RequestInput{Kind: models.RequestKindCancel, Reason: "Bored"},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "other without description",
			status:  models.OrderStatusPending,
			input:   RequestInput{Kind: models.RequestKindCancel, Reason: models.ReasonOther},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "cancel after delivery",
			status:  models.OrderStatusDelivered,
			input:   RequestInput{Kind: models.RequestKindCancel, Reason: "Ordered by mistake"},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "return before delivery",
			status:  models.OrderStatusShipped,
			input:   RequestInput{Kind: models.RequestKindReturn, Reason: "damaged"},
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "unknown sub-reason",
			status:  models.OrderStatusDelivered,
			input:   RequestInput{Kind: models.RequestKindReturn, Reason: "damaged", Description: "Wrong color"},
			wantErr: ErrValidationFailed,
		},
		{
			name:   "too many evidence images",
			status: models.OrderStatusDelivered,
			input: RequestInput{Kind: models.RequestKindReturn, Reason: "damaged", Evidence: []string{
				"https://a/1.jpg", "https://a/2.jpg", "https://a/3.jpg", "https://a/4.jpg", "https://a/5.jpg", "https://a/6.jpg",
			}},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "detail access on visible order",
			status:  models.OrderStatusDelivered,
			input:   RequestInput{Kind: models.RequestKindDetailAccess, Reason: "Warranty claim"},
			wantErr: ErrConflict,
		},
		{
			name:    "unknown kind",
			status:  models.OrderStatusPending,
			input:   RequestInput{Kind: "upgrade", Reason: "x"},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "not the owner",
			status:  models.OrderStatusPending,
			actor:   func(f *fixture) models.Actor { return f.stranger },
			input:   RequestInput{Kind: models.RequestKindCancel, Reason: "Ordered by mistake"},
			wantErr: ErrForbidden,
		},
		{
			name:    "admin cannot submit",
			status:  models.OrderStatusPending,
			actor:   func(f *fixture) models.Actor { return f.admin },
			input:   RequestInput{Kind: models.RequestKindCancel, Reason: "Ordered by mistake"},
			wantErr: ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			order := f.createOrder()
			f.advanceTo(order.ID, tt.status)
			before := f.store.order(order.ID)

			actor := f.customer
			if tt.actor != nil {
				actor = tt.actor(f)
			}
			_, err := f.svc.SubmitRequest(f.ctx, actor, order.ID, tt.input)
			require.ErrorIs(t, err, tt.wantErr)

			after := f.store.order(order.ID)
			assert.Equal(t, before.Status, after.Status)
			assert.Equal(t, before.Version, after.Version)
			assert.Empty(t, f.store.requestsOf(order.ID))
		})
	}
}

func TestSecondCancellationRequestConflicts(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()

	_, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Found a better price elsewhere",
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, f.store.requestsOf(order.ID), 1)
}

func TestConcurrentCancellationRequests(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
				Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
			})
		}()
	}
	wg.Wait()

	succeeded := lo.CountBy(errs, func(err error) bool { return err == nil })
	assert.Equal(t, 1, succeeded)
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Len(t, f.store.requestsOf(order.ID), 1)
}

func TestConcurrentDecisions(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()
	req, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
	})
	require.NoError(t, err)

	decisions := []DecisionInput{
		{Decision: models.DecisionApprove},
		{Decision: models.DecisionReject, Note: "already packed"},
		{Decision: models.DecisionApprove},
		{Decision: models.DecisionReject, Note: "already packed"},
	}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, in := range decisions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.DecideRequest(f.ctx, f.admin, req.ID, in)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, lo.CountBy(errs, func(err error) bool { return err == nil }))
	status := f.store.order(order.ID).Status
	assert.Contains(t, []models.OrderStatus{models.OrderStatusPending, models.OrderStatusRefundProcessing}, status)
}

func TestDecideRequestValidation(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder()
	req, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
	})
	require.NoError(t, err)

	_, err = f.svc.DecideRequest(f.ctx, f.customer, req.ID, DecisionInput{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: "maybe"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID+100, DecisionInput{Decision: models.DecisionApprove})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionReject, Note: "  "})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.DecideRequest(f.ctx, f.admin, req.ID, DecisionInput{Decision: models.DecisionReject, Note: "Already dispatched"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, f.store.order(order.ID).Status)

	again, err := f.svc.SubmitRequest(f.ctx, f.customer, order.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
	})
	require.NoError(t, err, "a decided request frees the slot")
	assert.NotEqual(t, req.ID, again.ID)
}

func TestListRequests(t *testing.T) {
	f := newFixture(t)
	first := f.createOrder()
	second := f.createOrder()

	_, err := f.svc.SubmitRequest(f.ctx, f.customer, first.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Ordered by mistake",
	})
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.svc.SubmitRequest(f.ctx, f.customer, second.ID, RequestInput{
		Kind: models.RequestKindCancel, Reason: "Delivery is taking too long",
	})
	require.NoError(t, err)

	_, err = f.svc.ListRequests(f.ctx, f.customer, models.RequestFilter{})
	assert.ErrorIs(t, err, ErrForbidden)

	kind := models.RequestKindCancel
	status := models.RequestStatusPending
	queue, err := f.svc.ListRequests(f.ctx, f.admin, models.RequestFilter{Kind: &kind, Status: &status})
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, first.ID, queue[0].OrderID, "oldest request first")

	bad := models.RequestKind("upgrade")
	_, err = f.svc.ListRequests(f.ctx, f.admin, models.RequestFilter{Kind: &bad})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
