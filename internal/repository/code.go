package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/model"

	"gorm.io/gorm"
)

// ErrCodeExhausted is returned when the atomic consume finds the code already
// at its usage limit.
var ErrCodeExhausted = errors.New("discount code usage limit reached")

type CodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.DiscountCode, error)
	// ConsumeUse atomically increments usage_count if the code is still under
	// its limit. Runs inside the payment-confirmation transaction; exhaustion
	// between validation and consumption fails the whole transition.
	ConsumeUse(ctx context.Context, tx *gorm.DB, code string) error
}

type codeRepoImpl struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) CodeRepository {
	return &codeRepoImpl{db: db}
}

func (r *codeRepoImpl) FindByCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	var dc model.DiscountCode
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&dc).Error

	if err != nil {
		return nil, err
	}

	return &dc, nil
}

func (r *codeRepoImpl) ConsumeUse(ctx context.Context, tx *gorm.DB, code string) error {
	result := tx.WithContext(ctx).Model(&model.DiscountCode{}).
		Where("code = ?", code).
		Where("max_uses = 0 OR usage_count < max_uses").
		Updates(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeExhausted
	}

	return nil
}
