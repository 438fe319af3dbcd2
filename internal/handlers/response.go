package handlers

import (
	"time"

	"github.com/agamariel/orderflow/internal/catalog"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/samber/lo"
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toOrderResponse собирает ответ по заказу. Если redact, состав заказа, адрес
// и доставка скрыты: заказ удалён, доступ к деталям не выдан.
func toOrderResponse(order *models.Order, products map[string]*catalog.Product, redact bool) *models.OrderResponse {
	total, _ := order.TotalAmount.Float64()
	resp := &models.OrderResponse{
		ID:           order.ID,
		UserID:       order.UserID.String(),
		Status:       string(order.DisplayStatus()),
		TotalAmount:  total,
		Currency:     order.Currency,
		RefundStatus: string(order.Refund.Status),
		CreatedAt:    order.CreatedAt.UTC().Format(time.RFC3339),
		Items:        []models.LineItemResponse{},
	}
	if order.Refund.Amount != nil {
		amount, _ := order.Refund.Amount.Float64()
		resp.RefundAmount = &amount
	}

	if order.Deletion.IsDeleted {
		resp.Deletion = &models.DeletionResponse{
			DeletedAt:         formatTime(order.Deletion.DeletedAt),
			DeletionExpiresAt: formatTime(order.Deletion.ExpiresAt),
			StatusBefore:      string(order.Deletion.StatusBefore),
		}
	}
	if order.Restoration.Status != "" && order.Restoration.Status != models.RestorationStatusNone {
		resp.Restoration = &models.RestorationResponse{
			Status:          string(order.Restoration.Status),
			Reason:          order.Restoration.Reason,
			RequestedAt:     formatTime(order.Restoration.RequestedAt),
			DecidedAt:       formatTime(order.Restoration.DecidedAt),
			RejectionReason: order.Restoration.RejectionReason,
		}
	}

	resp.Timestamps = lo.OmitByValues(map[string]string{
		"processing":        formatTime(order.Milestones.ProcessingAt),
		"shipped":           formatTime(order.Milestones.ShippedAt),
		"out_for_delivery":  formatTime(order.Milestones.OutForDeliveryAt),
		"delivered":         formatTime(order.Milestones.DeliveredAt),
		"cancelled":         formatTime(order.Milestones.CancelledAt),
		"refund_processing": formatTime(order.Milestones.RefundProcessingAt),
		"refunded":          formatTime(order.Milestones.RefundedAt),
	}, []string{""})

	if redact {
		return resp
	}

	resp.PaymentMethod = order.PaymentMethod
	address := order.ShippingAddress
	resp.Address = &address
	resp.Items = lo.Map(order.Items, func(item models.LineItem, _ int) models.LineItemResponse {
		price, _ := item.UnitPrice.Float64()
		line := models.LineItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		}
		if product, ok := products[item.ProductID]; ok {
			line.ProductName = product.Name
			line.ImageURL = product.ImageURL
		}
		return line
	})
	if order.Tracking.TrackingNumber != "" {
		resp.Tracking = &models.TrackingResponse{
			CourierName:       order.Tracking.CourierName,
			TrackingNumber:    order.Tracking.TrackingNumber,
			EstimatedDelivery: formatTime(order.Tracking.EstimatedDelivery),
		}
	}
	return resp
}

// redacted сообщает, что покупателю нельзя показывать детали заказа.
func redacted(actor models.Actor, order *models.Order) bool {
	return !actor.IsAdmin() && order.Deletion.IsDeleted && !order.DetailsVisible
}

func toRequestResponse(req *models.Request) *models.RequestResponse {
	return &models.RequestResponse{
		ID:          req.ID,
		OrderID:     req.OrderID,
		Kind:        string(req.Kind),
		RequesterID: req.RequesterID.String(),
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
		Status:      string(req.Status),
		AdminNote:   req.AdminNote,
		DecidedAt:   formatTime(req.DecidedAt),
		CreatedAt:   req.CreatedAt.UTC().Format(time.RFC3339),
	}
}
