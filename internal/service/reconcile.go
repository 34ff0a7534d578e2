package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/client"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
)

type EventSource string

const (
	SourceWidgetSuccess EventSource = "widget-success"
	SourceWidgetPending EventSource = "widget-pending"
	SourceWidgetError   EventSource = "widget-error"
	SourceWidgetClosed  EventSource = "widget-closed"
	SourceWebhook       EventSource = "webhook"
	SourcePoll          EventSource = "poll"
)

// ReconciliationEvent is one payment-status signal from any of the three
// channels (client widget, gateway webhook, server poll).
type ReconciliationEvent struct {
	Source      EventSource
	OrderNumber string
	// Status carries the gateway payload for webhook events, where the
	// payload itself is authoritative. Client-channel events leave it nil
	// and the coordinator fetches the status itself.
	Status *model.GatewayStatus
}

// ReconcileResult reports where the order ended up after applying a signal.
type ReconcileResult struct {
	Order     *model.Order
	Confirmed bool
	// Ambiguous marks a success signal that could not be confirmed within
	// the verify/poll budget; the order stays AWAITING_PAYMENT for manual
	// follow-up.
	Ambiguous bool
}

// Reconciler reduces the three independent payment-status channels to one
// authoritative state transition per order. Gateway fetches happen outside
// the per-order lock; the lock is held only to apply an already-known status.
// Whichever signal acquires the lock first wins; later signals observe the
// terminal state and return it unchanged.
type Reconciler interface {
	Handle(ctx context.Context, event ReconciliationEvent) (*ReconcileResult, error)
}

type reconcilerImpl struct {
	locks         *orderLocks
	orderService  OrderService
	gatewayClient client.GatewayClient
	attempts      int
	backoff       time.Duration
	log           *slog.Logger
}

func NewReconciler(orderService OrderService, gatewayClient client.GatewayClient, cfg *config.Gateway, log *slog.Logger) Reconciler {
	attempts := cfg.VerifyAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &reconcilerImpl{
		locks:         newOrderLocks(),
		orderService:  orderService,
		gatewayClient: gatewayClient,
		attempts:      attempts,
		backoff:       cfg.VerifyBackoff,
		log:           log,
	}
}

func (r *reconcilerImpl) Handle(ctx context.Context, event ReconciliationEvent) (*ReconcileResult, error) {
	switch event.Source {
	case SourceWidgetSuccess:
		return r.handleWidgetSuccess(ctx, event.OrderNumber)
	case SourceWidgetPending, SourceWidgetClosed:
		// a closed widget is a hint, not a cancellation; the webhook or a
		// poll settles the order later
		order, err := r.orderService.GetByNumber(ctx, event.OrderNumber)
		if err != nil {
			return nil, err
		}
		r.log.Info("non-terminal widget signal", "order_number", event.OrderNumber, "source", event.Source)
		return &ReconcileResult{Order: order, Confirmed: order.Status == model.OrderStatusPaid}, nil
	case SourceWidgetError:
		return r.handleWidgetError(ctx, event.OrderNumber)
	case SourceWebhook:
		return r.handleWebhook(ctx, event)
	case SourcePoll:
		return r.handlePoll(ctx, event.OrderNumber)
	}

	return nil, fmt.Errorf("unknown reconciliation source %q", event.Source)
}

// handleWidgetSuccess never trusts the client alone: it verifies against the
// gateway, falls back to one poll round, and otherwise surfaces ambiguity
// instead of dropping a funds-received signal.
func (r *reconcilerImpl) handleWidgetSuccess(ctx context.Context, orderNumber string) (*ReconcileResult, error) {
	if err := r.gatewayClient.AwaitReady(ctx); err != nil {
		return r.ambiguous(ctx, orderNumber, "gateway not reachable for verification")
	}

	status, err := r.fetchWithRetry(ctx, orderNumber, r.gatewayClient.Verify)
	if err != nil || status.Outcome() == model.OutcomePending {
		// inconclusive verify: one poll round before giving up
		status, err = r.fetchWithRetry(ctx, orderNumber, r.gatewayClient.PollStatus)
	}
	if err != nil {
		return r.ambiguous(ctx, orderNumber, "verification failed within budget")
	}
	if status.Outcome() == model.OutcomePending {
		// the buyer saw a success screen but the gateway cannot confirm it;
		// that contradiction needs a human, not a silent wait
		return r.ambiguous(ctx, orderNumber, "gateway still pending after success signal")
	}

	return r.apply(ctx, orderNumber, status, SourceWidgetSuccess)
}

func (r *reconcilerImpl) handleWidgetError(ctx context.Context, orderNumber string) (*ReconcileResult, error) {
	unlock := r.locks.Lock(orderNumber)
	defer unlock()

	// MarkFailed refuses to touch a PAID order, which covers the race with a
	// webhook that landed first.
	order, err := r.orderService.MarkFailed(ctx, orderNumber, model.OrderStatusCancelled, "payment widget reported an error")
	if err != nil {
		return nil, err
	}

	return &ReconcileResult{Order: order, Confirmed: order.Status == model.OrderStatusPaid}, nil
}

func (r *reconcilerImpl) handleWebhook(ctx context.Context, event ReconciliationEvent) (*ReconcileResult, error) {
	if event.Status == nil {
		return nil, fmt.Errorf("webhook event without payload for order %s", event.OrderNumber)
	}

	return r.apply(ctx, event.OrderNumber, event.Status, SourceWebhook)
}

func (r *reconcilerImpl) handlePoll(ctx context.Context, orderNumber string) (*ReconcileResult, error) {
	status, err := r.fetchWithRetry(ctx, orderNumber, r.gatewayClient.PollStatus)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// gateway never saw this order, nothing to reconcile
			order, gerr := r.orderService.GetByNumber(ctx, orderNumber)
			if gerr != nil {
				return nil, gerr
			}
			return &ReconcileResult{Order: order}, nil
		}
		return nil, err
	}

	return r.apply(ctx, orderNumber, status, SourcePoll)
}

// apply takes an already-fetched gateway status and applies it under the
// per-order lock. No network happens while the lock is held.
func (r *reconcilerImpl) apply(ctx context.Context, orderNumber string, status *model.GatewayStatus, source EventSource) (*ReconcileResult, error) {
	unlock := r.locks.Lock(orderNumber)
	defer unlock()

	switch status.Outcome() {
	case model.OutcomeSuccess:
		// a success signal whose amount does not match the snapshot is never
		// confirmed; it goes to manual follow-up instead
		if status.GrossAmount != "" {
			order, err := r.orderService.GetByNumber(ctx, orderNumber)
			if err != nil {
				return nil, err
			}
			units, perr := status.GrossAmountUnits()
			if perr != nil || units != order.FinalAmount {
				if order.Status == model.OrderStatusPaid {
					return &ReconcileResult{Order: order, Confirmed: true}, nil
				}
				r.log.Warn("gateway amount mismatch",
					"order_number", orderNumber,
					"gross_amount", status.GrossAmount,
					"final_amount", order.FinalAmount,
				)
				return &ReconcileResult{Order: order, Ambiguous: true}, nil
			}
		}

		order, err := r.orderService.ConfirmPaid(ctx, orderNumber, PaidEvidence{
			TransactionID:   status.TransactionID,
			TransactionTime: status.TransactionTime,
			Source:          string(source),
		})
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Order: order, Confirmed: true}, nil

	case model.OutcomeFailed:
		reason := fmt.Sprintf("gateway reported %s", status.TransactionStatus)
		order, err := r.orderService.MarkFailed(ctx, orderNumber, model.OrderStatusCancelled, reason)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Order: order, Confirmed: order.Status == model.OrderStatusPaid}, nil
	}

	// pending: no terminal action
	order, err := r.orderService.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Order: order, Confirmed: order.Status == model.OrderStatusPaid}, nil
}

func (r *reconcilerImpl) fetchWithRetry(ctx context.Context, orderNumber string, fetch func(context.Context, string) (*model.GatewayStatus, error)) (*model.GatewayStatus, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}

		status, err := fetch(ctx, orderNumber)
		if err == nil {
			return status, nil
		}
		lastErr = err

		// only transient failures are worth another attempt
		if !apperr.IsKind(err, apperr.KindGatewayTransient) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (r *reconcilerImpl) ambiguous(ctx context.Context, orderNumber, why string) (*ReconcileResult, error) {
	order, err := r.orderService.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	// never auto-confirm and never auto-cancel; the order stays where it is
	r.log.Warn("payment needs manual follow-up", "order_number", orderNumber, "why", why)

	if order.Status == model.OrderStatusPaid {
		return &ReconcileResult{Order: order, Confirmed: true}, nil
	}
	return &ReconcileResult{Order: order, Ambiguous: true}, nil
}
