package service

import (
	"context"
	"testing"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
)

func backdateOrder(t *testing.T, env *testEnv, orderNumber string, age time.Duration) {
	t.Helper()
	if err := env.db.Model(&model.Order{}).
		Where("order_number = ?", orderNumber).
		Update("created_at", time.Now().Add(-age)).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}
}

func TestSweepExpiresStaleAwaitingOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stale := awaitingOrder(t, env, "old@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	fresh := awaitingOrder(t, env, "new@example.com", "0822222222", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	backdateOrder(t, env, stale.OrderNumber, 2*time.Hour)

	sweeper := NewExpirySweeper(env.orderRepo, env.orders, env.reconciler, time.Hour, time.Minute, testLogger())
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, _ := env.orders.GetByNumber(ctx, stale.OrderNumber)
	if got.Status != model.OrderStatusExpired {
		t.Fatalf("expected stale order EXPIRED, got %s", got.Status)
	}

	got, _ = env.orders.GetByNumber(ctx, fresh.OrderNumber)
	if got.Status != model.OrderStatusAwaitingPayment {
		t.Fatalf("fresh order touched by sweep: %s", got.Status)
	}
}

func TestSweepConfirmsSettledOrderInsteadOfExpiring(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// webhook got lost, the gateway knows the payment settled
	order := awaitingOrder(t, env, "lost@example.com", "0811111111", &dto.CreateOrderRequest{Quantity: 1, Category: "festival"})
	backdateOrder(t, env, order.OrderNumber, 2*time.Hour)
	env.gateway.statuses = []*model.GatewayStatus{settlementStatus()}

	sweeper := NewExpirySweeper(env.orderRepo, env.orders, env.reconciler, time.Hour, time.Minute, testLogger())
	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, _ := env.orders.GetByNumber(ctx, order.OrderNumber)
	if got.Status != model.OrderStatusPaid {
		t.Fatalf("sweeper expired a settled payment: %s", got.Status)
	}
}
