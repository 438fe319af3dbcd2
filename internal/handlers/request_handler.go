package handlers

import (
	"net/http"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/models"
	"github.com/agamariel/orderflow/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// RequestHandler обрабатывает запросы покупателей и решения администратора.
type RequestHandler struct {
	workflow services.WorkflowService
}

func NewRequestHandler(workflow services.WorkflowService) *RequestHandler {
	return &RequestHandler{workflow: workflow}
}

// SubmitRequest обрабатывает POST /api/orders/:id/requests.
func (h *RequestHandler) SubmitRequest(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	var body models.SubmitRequestBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	kind := models.RequestKind(body.Kind)
	if kind == models.RequestKindReturn && body.ReturnType == string(models.RequestKindReplace) {
		kind = models.RequestKindReplace
	}

	req, err := h.workflow.SubmitRequest(c.Request().Context(), actor, orderID, services.RequestInput{
		Kind:        kind,
		Reason:      body.Reason,
		Description: body.Description,
		Evidence:    body.Evidence,
	})
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusCreated, toRequestResponse(req))
}

// DecideRequest обрабатывает POST /api/requests/:id/decision.
func (h *RequestHandler) DecideRequest(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	requestID, err := idParam(c)
	if err != nil {
		return err
	}

	var body models.DecisionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	req, err := h.workflow.DecideRequest(c.Request().Context(), actor, requestID, services.DecisionInput{
		Decision: models.Decision(body.Decision),
		Note:     body.Note,
	})
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// ListRequests обрабатывает GET /api/admin/requests?kind=&status=&limit=&offset=.
func (h *RequestHandler) ListRequests(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}

	var (
		kind, status  string
		limit, offset int
	)
	if err := echo.QueryParamsBinder(c).
		String("kind", &kind).
		String("status", &status).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters")
	}

	filter := models.RequestFilter{Limit: limit, Offset: offset}
	if kind != "" {
		k := models.RequestKind(kind)
		filter.Kind = &k
	}
	if status != "" {
		s := models.RequestStatus(status)
		filter.Status = &s
	}

	requests, err := h.workflow.ListRequests(c.Request().Context(), actor, filter)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, lo.Map(requests, func(r *models.Request, _ int) *models.RequestResponse {
		return toRequestResponse(r)
	}))
}

// SubmitRestoration обрабатывает POST /api/orders/:id/restoration.
func (h *RequestHandler) SubmitRestoration(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	var body models.RestorationBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	req, err := h.workflow.SubmitRestoration(c.Request().Context(), actor, orderID, body.Reason)
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusCreated, toRequestResponse(req))
}

// DecideRestoration обрабатывает POST /api/orders/:id/restoration/decision.
func (h *RequestHandler) DecideRestoration(c echo.Context) error {
	actor, err := auth.GetActorFromContext(c)
	if err != nil {
		return err
	}
	orderID, err := idParam(c)
	if err != nil {
		return err
	}

	var body models.DecisionBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request format")
	}

	req, err := h.workflow.DecideRestoration(c.Request().Context(), actor, orderID, services.DecisionInput{
		Decision: models.Decision(body.Decision),
		Note:     body.Note,
	})
	if err != nil {
		return workflowError(c, err)
	}

	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// Reasons обрабатывает GET /api/reasons.
func (h *RequestHandler) Reasons(c echo.Context) error {
	return c.JSON(http.StatusOK, &models.ReasonsResponse{
		Cancellation: models.CancellationReasons,
		Return:       models.ReturnCategories,
		DetailAccess: models.DetailAccessReasons,
	})
}
