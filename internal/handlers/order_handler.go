package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/catalog"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// OrderHandler обрабатывает запросы, связанные с заказами.
type OrderHandler struct {
	workflow services.WorkflowService
	catalog  catalog.Client
	logger   *slog.Logger
}

// NewOrderHandler создаёт обработчик заказов. catalog может быть nil,
// тогда ответы не обогащаются названиями и картинками товаров.
func NewOrderHandler(workflow services.WorkflowService, catalogClient catalog.Client, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{workflow: workflow, catalog: catalogClient, logger: logger}
}

// CreateOrder обрабатывает POST /api/orders.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}

	var req models.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	order, err := h.workflow.CreateOrder(c.Request().Context(), actor, services.CreateOrderInput{
		Items:           req.Items,
		Currency:        req.Currency,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusCreated, h.render(c, actor, []*models.Order{order})[0])
}

// ListOrders обрабатывает GET /api/orders?status=&limit=&offset=.
func (h *OrderHandler) ListOrders(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}

	var (
		statuses      []string
		limit, offset int
	)
	if err := echo.QueryParamsBinder(c).
		Strings("status", &statuses).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	filter := models.OrderFilter{Limit: limit, Offset: offset}
	for _, raw := range statuses {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	orders, err := h.workflow.ListOrders(c.Request().Context(), actor, filter)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, orders))
}

// GetOrder обрабатывает GET /api/orders/:id.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	order, err := h.workflow.GetOrder(c.Request().Context(), actor, orderID)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, []*models.Order{order})[0])
}

// ReturnEligibility обрабатывает GET /api/orders/:id/return-eligibility.
func (h *OrderHandler) ReturnEligibility(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	eligibility, err := h.workflow.ReturnEligibility(c.Request().Context(), actor, orderID)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, &models.EligibilityResponse{
		Eligible: eligibility.Eligible,
		Deadline: formatTime(eligibility.Deadline),
	})
}

// Transition обрабатывает POST /api/orders/:id/status.
func (h *OrderHandler) Transition(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	var req models.TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}
	to, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := services.TransitionInput{
		To:             to,
		TrackingNumber: req.TrackingNumber,
		CourierName:    req.CourierName,
	}
	if req.EstimatedDelivery != "" {
		eta, err := time.Parse(time.RFC3339, req.EstimatedDelivery)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "estimated_delivery must be RFC3339")
		}
		in.EstimatedDelivery = &eta
	}

	order, err := h.workflow.Transition(c.Request().Context(), actor, orderID, in)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, []*models.Order{order})[0])
}

// CompleteRefund обрабатывает POST /api/orders/:id/refund.
func (h *OrderHandler) CompleteRefund(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	var req models.RefundBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	in := services.RefundInput{TransactionID: req.TransactionID}
	if req.Amount != nil {
		amount := decimal.NewFromFloat(*req.Amount)
		in.Amount = &amount
	}

	order, err := h.workflow.CompleteRefund(c.Request().Context(), actor, orderID, in)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, []*models.Order{order})[0])
}

// SoftDelete обрабатывает DELETE /api/orders/:id.
func (h *OrderHandler) SoftDelete(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	order, err := h.workflow.SoftDelete(c.Request().Context(), actor, orderID)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, []*models.Order{order})[0])
}

// ListDeleted обрабатывает GET /api/orders/deleted.
func (h *OrderHandler) ListDeleted(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}

	orders, err := h.workflow.ListDeleted(c.Request().Context(), actor)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, h.render(c, actor, orders))
}

// render переводит заказы в DTO, одним проходом по каталогу для всех товаров.
func (h *OrderHandler) render(c echo.Context, actor models.Actor, orders []*models.Order) []*models.OrderResponse {
	visible := lo.Filter(orders, func(o *models.Order, _ int) bool { return !redacted(actor, o) })
	productIDs := lo.FlatMap(visible, func(o *models.Order, _ int) []string {
		return lo.Map(o.Items, func(item models.LineItem, _ int) string { return item.ProductID })
	})
	products := catalog.Lookup(c.Request().Context(), h.catalog, h.logger, productIDs)

	return lo.Map(orders, func(o *models.Order, _ int) *models.OrderResponse {
		return toOrderResponse(o, products, redacted(actor, o))
	})
}

// idParam разбирает числовой идентификатор из пути.
func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
