package repository

import (
	"context"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	// FindBlockingByContact returns an order in DRAFT, AWAITING_PAYMENT or
	// PAID whose buyer email or phone matches. A paid order keeps the
	// contact bound; only CANCELLED and EXPIRED free it up again. Used both
	// for the fast-fail duplicate check and for the re-check inside the
	// draft-create transaction.
	FindBlockingByContact(ctx context.Context, tx *gorm.DB, email, phone string) (*model.Order, error)
	// SetToken moves DRAFT to AWAITING_PAYMENT and stores the gateway token.
	// Reports the number of rows changed so callers can detect a lost race.
	SetToken(ctx context.Context, orderNumber, token string) (int64, error)
	// MarkPaid is the conditional AWAITING_PAYMENT -> PAID update. Zero rows
	// affected means the order was not awaiting payment anymore.
	MarkPaid(ctx context.Context, tx *gorm.DB, orderNumber string, paidAt time.Time) (int64, error)
	// MarkFailed is the conditional AWAITING_PAYMENT -> CANCELLED|EXPIRED
	// update; it can never touch a PAID row.
	MarkFailed(ctx context.Context, orderNumber, status, reason string) (int64, error)
	ListAwaitingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Order, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) FindBlockingByContact(ctx context.Context, tx *gorm.DB, email, phone string) (*model.Order, error) {
	if tx == nil {
		tx = r.db
	}

	var order model.Order
	err := tx.WithContext(ctx).
		Where("status IN ?", []string{model.OrderStatusDraft, model.OrderStatusAwaitingPayment, model.OrderStatusPaid}).
		Where("buyer_email = ? OR buyer_phone = ?", email, phone).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) SetToken(ctx context.Context, orderNumber, token string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, model.OrderStatusDraft).
		Updates(map[string]interface{}{
			"status":        model.OrderStatusAwaitingPayment,
			"gateway_token": token,
			"updated_at":    time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderNumber string, paidAt time.Time) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, model.OrderStatusAwaitingPayment).
		Updates(map[string]interface{}{
			"status":     model.OrderStatusPaid,
			"paid_at":    paidAt,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) MarkFailed(ctx context.Context, orderNumber, status, reason string) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_number = ? AND status = ?", orderNumber, model.OrderStatusAwaitingPayment).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": reason,
			"cancelled_at":   now,
			"updated_at":     now,
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) ListAwaitingOlderThan(ctx context.Context, cutoff time.Time) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrderStatusAwaitingPayment).
		Where("created_at < ?", cutoff).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}
