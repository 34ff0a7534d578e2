package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
)

func TestWidgetSuccessVerifiesBeforeConfirming(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Confirmed || result.Order.Status != model.OrderStatusPaid {
		t.Fatalf("expected confirmed paid, got confirmed=%v status=%s", result.Confirmed, result.Order.Status)
	}
}

func TestWidgetSuccessRetriesTransientThenConfirms(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	env.gateway.transient = 2
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected confirmation after transient retries")
	}
}

func TestWidgetSuccessPendingVerifyFallsBackToPoll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	env.gateway.statuses = []*model.GatewayStatus{pendingStatus(), settlementStatus()}

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected poll fallback to confirm")
	}
}

func TestWidgetSuccessStillPendingAfterPollIsAmbiguous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	env.gateway.statuses = []*model.GatewayStatus{pendingStatus()}

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	// the buyer saw success but verify and the poll round both say pending;
	// that contradiction goes to manual follow-up, never a silent wait
	if !result.Ambiguous {
		t.Fatal("expected manual follow-up while the gateway stays pending")
	}
	if result.Order.Status != model.OrderStatusAwaitingPayment {
		t.Fatalf("unconfirmed success signal must leave the order awaiting, got %s", result.Order.Status)
	}
}

func TestWidgetSuccessUnconfirmableIsAmbiguousNotFailed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	env.gateway.notReady = true

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Ambiguous {
		t.Fatal("expected ambiguous result")
	}
	if result.Order.Status != model.OrderStatusAwaitingPayment {
		t.Fatalf("ambiguous signal must not move the order, got %s", result.Order.Status)
	}
}

func TestWidgetClosedIsAHintNotACancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})

	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetClosed, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result.Order.Status != model.OrderStatusAwaitingPayment {
		t.Fatalf("close must leave the order awaiting, got %s", result.Order.Status)
	}

	// the payment the gateway later reports as settled still wins
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}
	result, err = env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourcePoll, OrderNumber: order.OrderNumber})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected poll to confirm after widget close")
	}
}

func TestWidgetErrorCancelsUnlessPaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("cancels an awaiting order", func(t *testing.T) {
		order := awaitingOrder(t, env, "one@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})

		result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetError, OrderNumber: order.OrderNumber})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if result.Order.Status != model.OrderStatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", result.Order.Status)
		}
	})

	t.Run("does not touch a paid order", func(t *testing.T) {
		order := awaitingOrder(t, env, "two@example.com", "0822222222", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
		if _, err := env.orders.ConfirmPaid(ctx, order.OrderNumber, PaidEvidence{Source: "webhook"}); err != nil {
			t.Fatalf("confirm: %v", err)
		}

		result, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetError, OrderNumber: order.OrderNumber})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if result.Order.Status != model.OrderStatusPaid {
			t.Fatalf("widget error overrode PAID with %s", result.Order.Status)
		}
	})
}

func TestSuccessWithWrongAmountIsAmbiguous(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// quantity 1, no codes -> final amount 150000
	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})

	status := settlementStatus()
	status.GrossAmount = "999999.00"
	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{
		Source:      SourceWebhook,
		OrderNumber: order.OrderNumber,
		Status:      status,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Ambiguous || result.Confirmed {
		t.Fatalf("mismatched amount must be ambiguous, got confirmed=%v ambiguous=%v", result.Confirmed, result.Ambiguous)
	}
	if result.Order.Status != model.OrderStatusAwaitingPayment {
		t.Fatalf("mismatched amount moved the order to %s", result.Order.Status)
	}

	// the matching amount still confirms
	status = settlementStatus()
	status.GrossAmount = "150000.00"
	result, err = env.reconciler.Handle(ctx, ReconciliationEvent{
		Source:      SourceWebhook,
		OrderNumber: order.OrderNumber,
		Status:      status,
	})
	if err != nil {
		t.Fatalf("handle matching amount: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("matching amount should confirm")
	}
}

func TestWebhookFailureAfterPaidIsDiscarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})

	// widget wins first
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}
	if _, err := env.reconciler.Handle(ctx, ReconciliationEvent{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber}); err != nil {
		t.Fatalf("widget success: %v", err)
	}

	// the late webhook says the same order failed
	result, err := env.reconciler.Handle(ctx, ReconciliationEvent{
		Source:      SourceWebhook,
		OrderNumber: order.OrderNumber,
		Status:      deniedStatus(),
	})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if result.Order.Status != model.OrderStatusPaid {
		t.Fatalf("late failure regressed PAID to %s", result.Order.Status)
	}
}

func TestThreeChannelsConfirmExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	order := awaitingOrder(t, env, "ani@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 3, Category: "festival"})
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}

	events := []ReconciliationEvent{
		{Source: SourceWidgetSuccess, OrderNumber: order.OrderNumber},
		{Source: SourceWebhook, OrderNumber: order.OrderNumber, Status: settlementStatus()},
		{Source: SourcePoll, OrderNumber: order.OrderNumber},
	}

	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev ReconciliationEvent) {
			defer wg.Done()
			if _, err := env.reconciler.Handle(ctx, ev); err != nil {
				t.Errorf("handle %s: %v", ev.Source, err)
			}
		}(ev)
	}
	wg.Wait()

	got, err := env.orders.GetByNumber(ctx, order.OrderNumber)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != model.OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", got.Status)
	}

	count, err := env.ticketRepo.CountByOrder(ctx, order.OrderNumber)
	if err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if count != 3 {
		t.Fatalf("ticket issuance ran more than once: %d tickets for quantity 3", count)
	}
}
