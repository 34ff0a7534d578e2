package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/Kwazak/umnfestival2026-sub001/internal/client"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"
	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/labstack/echo/v4"
)

// PaymentHandler ingests the gateway's asynchronous notifications. The
// webhook is the authoritative out-of-band channel and is processed whether
// or not the buyer's browser is still around.
type PaymentHandler struct {
	reconciler       service.Reconciler
	gatewayClient    client.GatewayClient
	webhookEventRepo repository.WebhookEventRepository
	log              *slog.Logger
}

func NewPaymentHandler(
	reconciler service.Reconciler,
	gatewayClient client.GatewayClient,
	webhookEventRepo repository.WebhookEventRepository,
	log *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		reconciler:       reconciler,
		gatewayClient:    gatewayClient,
		webhookEventRepo: webhookEventRepo,
		log:              log,
	}
}

func (h *PaymentHandler) Notify(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read notification body")
	}

	var status model.GatewayStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "decode notification payload")
	}
	if status.OrderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "notification without order_id")
	}

	if err := h.gatewayClient.VerifySignature(&status); err != nil {
		h.log.Warn("rejected notification", "order_number", status.OrderID, "err", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid notification signature")
	}

	// one row per (transaction, status): a redelivered notification is
	// acknowledged without re-running reconciliation
	eventID := status.TransactionID + ":" + status.TransactionStatus
	seen, err := h.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return err
	}
	if seen {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	result, err := h.reconciler.Handle(ctx, service.ReconciliationEvent{
		Source:      service.SourceWebhook,
		OrderNumber: status.OrderID,
		Status:      &status,
	})
	if err != nil {
		h.log.Error("webhook reconciliation failed", "order_number", status.OrderID, "err", err)
		return err
	}

	if err := h.webhookEventRepo.MarkProcessed(ctx, eventID, status.TransactionStatus, status.OrderID); err != nil {
		return err
	}

	h.log.Info("webhook processed",
		"order_number", status.OrderID,
		"transaction_status", status.TransactionStatus,
		"order_status", result.Order.Status,
	)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
