package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/client"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/pricing"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaidEvidence is the gateway-reported fact backing a confirmPaid call.
type PaidEvidence struct {
	TransactionID   string
	TransactionTime string
	Source          string
}

// OrderService owns the order state machine:
// DRAFT -> AWAITING_PAYMENT -> PAID, or -> CANCELLED/EXPIRED. All mutation
// goes through these transitions; paid-only side effects (code consumption,
// ticket issuance) run exactly once inside ConfirmPaid's transaction.
type OrderService interface {
	CreateDraft(ctx context.Context, accountID uint, req *dto.CreateOrderRequest) (*model.Order, error)
	RequestPaymentToken(ctx context.Context, orderNumber string) (*dto.PaymentTokenResponse, error)
	ConfirmPaid(ctx context.Context, orderNumber string, evidence PaidEvidence) (*model.Order, error)
	MarkFailed(ctx context.Context, orderNumber, target, reason string) (*model.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
}

type orderServiceImpl struct {
	db            *gorm.DB
	orderRepo     repository.OrderRepository
	codeRepo      repository.CodeRepository
	ticketRepo    repository.TicketRepository
	accountRepo   repository.AccountRepository
	codeService   CodeService
	gatewayClient client.GatewayClient
	checkout      config.Checkout
	bundleTable   pricing.BundleTable
	log           *slog.Logger
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	codeRepo repository.CodeRepository,
	ticketRepo repository.TicketRepository,
	accountRepo repository.AccountRepository,
	codeService CodeService,
	gatewayClient client.GatewayClient,
	checkout config.Checkout,
	log *slog.Logger,
) OrderService {
	return &orderServiceImpl{
		db:            db,
		orderRepo:     orderRepo,
		codeRepo:      codeRepo,
		ticketRepo:    ticketRepo,
		accountRepo:   accountRepo,
		codeService:   codeService,
		gatewayClient: gatewayClient,
		checkout:      checkout,
		bundleTable:   checkout.BundleTable(),
		log:           log,
	}
}

func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "FEST-" + strings.ToUpper(id[:10])
}

func (s *orderServiceImpl) validCategory(category string) bool {
	for _, c := range s.checkout.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func (s *orderServiceImpl) CreateDraft(ctx context.Context, accountID uint, req *dto.CreateOrderRequest) (*model.Order, error) {
	if req.Quantity < 1 || req.Quantity > s.checkout.MaxQuantity {
		return nil, apperr.ValidationField("QUANTITY_OUT_OF_RANGE", "quantity",
			fmt.Sprintf("quantity must be between 1 and %d", s.checkout.MaxQuantity))
	}
	if !s.validCategory(req.Category) {
		return nil, apperr.ValidationField("UNKNOWN_CATEGORY", "category", "unknown ticket category")
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("account not found")
		}
		return nil, err
	}

	subtotal := s.checkout.UnitPrice * int64(req.Quantity)

	// A changed code always re-validates from scratch; nothing from an
	// earlier validation survives into the snapshot.
	var disc *pricing.Discount
	if req.DiscountCode != "" {
		dc, err := s.codeService.Validate(ctx, req.DiscountCode, model.CodeKindPercentage, subtotal)
		if err != nil {
			return nil, err
		}
		disc = &pricing.Discount{Code: dc.Code, Percent: dc.Percent}
	} else if req.ReferralCode != "" {
		dc, err := s.codeService.Validate(ctx, req.ReferralCode, model.CodeKindReferral, subtotal)
		if err != nil {
			return nil, err
		}
		disc = &pricing.Discount{Code: dc.Code, Percent: dc.Percent}
	}

	snap := pricing.Compute(s.checkout.UnitPrice, req.Quantity, disc, s.checkout.BundleEnabled, s.bundleTable)

	order := &model.Order{
		OrderNumber:          newOrderNumber(),
		AccountID:            account.ID,
		BuyerName:            account.Name,
		BuyerEmail:           account.Email,
		BuyerPhone:           account.Phone,
		Quantity:             req.Quantity,
		Category:             req.Category,
		ReferralCode:         req.ReferralCode,
		DiscountCode:         req.DiscountCode,
		BasePrice:            snap.UnitPrice,
		Subtotal:             snap.Subtotal,
		DiscountAmount:       snap.DiscountAmount,
		BundleDiscountAmount: snap.BundleDiscountAmount,
		FinalAmount:          snap.FinalAmount,
		Status:               model.OrderStatusDraft,
	}

	// Uniqueness re-check and insert share one transaction so a duplicate
	// cannot slip in between the fast-fail check and the draft row.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.orderRepo.FindBlockingByContact(ctx, tx, account.Email, account.Phone)
		if err == nil {
			field := "phone"
			if existing.BuyerEmail == account.Email {
				field = "email"
			}
			return apperr.ConflictField(apperr.ReasonDuplicateContact, field,
				"an order already exists for this contact")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return s.orderRepo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order draft created",
		"order_number", order.OrderNumber,
		"quantity", order.Quantity,
		"final_amount", order.FinalAmount,
	)

	return order, nil
}

func (s *orderServiceImpl) RequestPaymentToken(ctx context.Context, orderNumber string) (*dto.PaymentTokenResponse, error) {
	order, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	// idempotent while awaiting payment: hand back the stored token instead
	// of minting a second one
	if order.Status == model.OrderStatusAwaitingPayment && order.GatewayToken != "" {
		return &dto.PaymentTokenResponse{OrderNumber: order.OrderNumber, Token: order.GatewayToken}, nil
	}
	if order.Status != model.OrderStatusDraft {
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			fmt.Sprintf("cannot request payment token in state %s", order.Status))
	}

	result, err := s.gatewayClient.CreateTransactionToken(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("gateway create transaction token: %w", err)
	}

	rows, err := s.orderRepo.SetToken(ctx, order.OrderNumber, result.Token)
	if err != nil {
		return nil, fmt.Errorf("store gateway token: %w", err)
	}
	if rows == 0 {
		// lost a race with a concurrent token request; the stored token wins
		current, err := s.GetByNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
		if current.Status == model.OrderStatusAwaitingPayment && current.GatewayToken != "" {
			return &dto.PaymentTokenResponse{OrderNumber: current.OrderNumber, Token: current.GatewayToken}, nil
		}
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			fmt.Sprintf("cannot request payment token in state %s", current.Status))
	}

	return &dto.PaymentTokenResponse{
		OrderNumber: order.OrderNumber,
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	}, nil
}

func (s *orderServiceImpl) ConfirmPaid(ctx context.Context, orderNumber string, evidence PaidEvidence) (*model.Order, error) {
	order, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	// already terminal-success: idempotent no-op, side effects stay run-once
	if order.Status == model.OrderStatusPaid {
		return order, nil
	}
	if order.Terminal() {
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			fmt.Sprintf("cannot confirm payment for order in state %s", order.Status))
	}
	if order.Status != model.OrderStatusAwaitingPayment {
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			"payment confirmed before a token was issued")
	}

	paidAt := time.Now()
	applied := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.MarkPaid(ctx, tx, orderNumber, paidAt)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		if rows == 0 {
			// someone else moved the order first; no side effects here
			return nil
		}
		applied = true

		if order.DiscountCode != "" {
			if err := s.codeRepo.ConsumeUse(ctx, tx, order.DiscountCode); err != nil {
				// exhausted between validation and consumption: hard failure,
				// the whole transition rolls back for manual reconciliation
				return fmt.Errorf("consume discount code %s: %w", order.DiscountCode, err)
			}
		}
		if order.ReferralCode != "" && order.DiscountCode == "" {
			if err := s.codeRepo.ConsumeUse(ctx, tx, order.ReferralCode); err != nil {
				return fmt.Errorf("consume referral code %s: %w", order.ReferralCode, err)
			}
		}

		tickets := make([]*model.Ticket, order.Quantity)
		for i := range tickets {
			tickets[i] = &model.Ticket{
				OrderNumber: order.OrderNumber,
				SerialCode:  strings.ToUpper(uuid.NewString()),
				Category:    order.Category,
			}
		}
		if err := s.ticketRepo.CreateBatch(ctx, tx, tickets); err != nil {
			return fmt.Errorf("issue tickets: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	current, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !applied {
		// lost the race: report whatever terminal state won
		if current.Status == model.OrderStatusPaid {
			return current, nil
		}
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			fmt.Sprintf("order moved to %s before payment confirmation", current.Status))
	}

	s.log.Info("order paid",
		"order_number", orderNumber,
		"source", evidence.Source,
		"transaction_id", evidence.TransactionID,
	)

	return current, nil
}

func (s *orderServiceImpl) MarkFailed(ctx context.Context, orderNumber, target, reason string) (*model.Order, error) {
	if target != model.OrderStatusCancelled && target != model.OrderStatusExpired {
		return nil, fmt.Errorf("invalid failure target state %s", target)
	}

	order, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	// a late failure signal never overrides a successful payment
	if order.Status == model.OrderStatusPaid {
		s.log.Warn("failure signal after paid state, discarding",
			"order_number", orderNumber,
			"reason", reason,
		)
		return order, nil
	}
	// repeating the same terminal failure is a no-op
	if order.Status == target {
		return order, nil
	}
	if order.Terminal() {
		return nil, apperr.Conflict(apperr.ReasonWrongState,
			fmt.Sprintf("order already in terminal state %s", order.Status))
	}

	rows, err := s.orderRepo.MarkFailed(ctx, orderNumber, target, reason)
	if err != nil {
		return nil, fmt.Errorf("mark order failed: %w", err)
	}
	if rows == 0 {
		// raced with another transition; report whatever state won
		return s.GetByNumber(ctx, orderNumber)
	}

	s.log.Info("order failed",
		"order_number", orderNumber,
		"target", target,
		"reason", reason,
	)

	return s.GetByNumber(ctx, orderNumber)
}

func (s *orderServiceImpl) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}

	return order, nil
}
