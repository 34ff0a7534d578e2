package handler

import (
	"net/http"

	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/middleware"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orderService service.OrderService
	reconciler   service.Reconciler
}

func NewOrderHandler(orderService service.OrderService, reconciler service.Reconciler) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		reconciler:   reconciler,
	}
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		OrderNumber:          order.OrderNumber,
		Status:               order.Status,
		Quantity:             order.Quantity,
		Category:             order.Category,
		BasePrice:            order.BasePrice,
		Subtotal:             order.Subtotal,
		DiscountAmount:       order.DiscountAmount,
		BundleDiscountAmount: order.BundleDiscountAmount,
		FinalAmount:          order.FinalAmount,
		ReferralCode:         order.ReferralCode,
		DiscountCode:         order.DiscountCode,
		CreatedAt:            order.CreatedAt,
		PaidAt:               order.PaidAt,
	}
}

func (h *OrderHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	accountID, ok := middleware.AccountID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}

	var req dto.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.CreateDraft(ctx, accountID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) CreatePaymentToken(c echo.Context) error {
	ctx := c.Request().Context()

	orderNumber := c.Param("number")
	token, err := h.orderService.RequestPaymentToken(ctx, orderNumber)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, token)
}

// VerifyPayment is the client-driven confirmation path: the widget reported
// success (or closed), and the server settles the truth with the gateway.
func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	ctx := c.Request().Context()

	orderNumber := c.Param("number")
	result, err := h.reconciler.Handle(ctx, service.ReconciliationEvent{
		Source:      sourceFromQuery(c.QueryParam("signal")),
		OrderNumber: orderNumber,
	})
	if err != nil {
		return err
	}

	status := "pending"
	switch {
	case result.Confirmed:
		status = "paid"
	case result.Ambiguous:
		status = "manual_followup"
	case result.Order.Terminal():
		status = "failed"
	}

	return c.JSON(http.StatusOK, dto.VerifyResponse{
		Order:     toOrderResponse(result.Order),
		Confirmed: result.Confirmed,
		Status:    status,
	})
}

// sourceFromQuery maps the widget callback that triggered verification onto a
// reconciliation source; absent or unknown values mean the client claims
// success and the gateway is asked.
func sourceFromQuery(signal string) service.EventSource {
	switch signal {
	case "pending":
		return service.SourceWidgetPending
	case "error":
		return service.SourceWidgetError
	case "close":
		return service.SourceWidgetClosed
	}
	return service.SourceWidgetSuccess
}

func (h *OrderHandler) PaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	orderNumber := c.Param("number")
	order, err := h.orderService.GetByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.PaymentStatusResponse{
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		PaidAt:      order.PaidAt,
	})
}
