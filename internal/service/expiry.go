package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"
)

// ExpirySweeper walks orders stuck in AWAITING_PAYMENT past the payment
// window. Each stale order gets one last poll through the reconciler, so a
// settled payment whose webhook was lost is confirmed instead of expired;
// only orders the gateway still reports non-terminal are expired.
type ExpirySweeper struct {
	orderRepo     repository.OrderRepository
	orderService  OrderService
	reconciler    Reconciler
	paymentWindow time.Duration
	interval      time.Duration
	log           *slog.Logger
}

func NewExpirySweeper(
	orderRepo repository.OrderRepository,
	orderService OrderService,
	reconciler Reconciler,
	paymentWindow, interval time.Duration,
	log *slog.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		orderRepo:     orderRepo,
		orderService:  orderService,
		reconciler:    reconciler,
		paymentWindow: paymentWindow,
		interval:      interval,
		log:           log,
	}
}

// Run loops until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("expiry sweep failed", "err", err)
			}
		}
	}
}

func (s *ExpirySweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-s.paymentWindow)
	stale, err := s.orderRepo.ListAwaitingOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, order := range stale {
		result, err := s.reconciler.Handle(ctx, ReconciliationEvent{
			Source:      SourcePoll,
			OrderNumber: order.OrderNumber,
		})
		if err != nil {
			s.log.Warn("stale order poll failed", "order_number", order.OrderNumber, "err", err)
			continue
		}
		if result.Order.Terminal() {
			continue
		}

		if _, err := s.orderService.MarkFailed(ctx, order.OrderNumber,
			model.OrderStatusExpired, "payment window elapsed"); err != nil {
			s.log.Warn("expire order failed", "order_number", order.OrderNumber, "err", err)
		}
	}

	return nil
}
