package service

import (
	"context"
	"errors"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"

	"gorm.io/gorm"
)

// CodeService validates referral and discount codes against catalog rules.
// Validation is read-only and never reserves the code; consumption happens at
// the paid transition so abandoned carts cannot starve a limited code.
type CodeService interface {
	Validate(ctx context.Context, code, kind string, contextAmount int64) (*model.DiscountCode, error)
}

type codeServiceImpl struct {
	codeRepo repository.CodeRepository
}

func NewCodeService(codeRepo repository.CodeRepository) CodeService {
	return &codeServiceImpl{codeRepo: codeRepo}
}

func (s *codeServiceImpl) Validate(ctx context.Context, code, kind string, contextAmount int64) (*model.DiscountCode, error) {
	if code == "" {
		return nil, apperr.Validation(apperr.ReasonNotFound, "code is required")
	}

	dc, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Validation(apperr.ReasonNotFound, "code not found")
		}
		return nil, err
	}

	if kind != "" && dc.Kind != kind {
		return nil, apperr.Validation(apperr.ReasonNotFound, "code not found for this kind")
	}

	if !dc.Active {
		return nil, apperr.Validation(apperr.ReasonInactive, "code is no longer active")
	}

	if dc.ExpiresAt != nil && dc.ExpiresAt.Before(time.Now()) {
		return nil, apperr.Validation(apperr.ReasonExpired, "code has expired")
	}

	if dc.MaxUses > 0 && dc.UsageCount >= dc.MaxUses {
		return nil, apperr.Validation(apperr.ReasonUsageLimitReached, "code usage limit reached")
	}

	if contextAmount < dc.MinimumAmount {
		return nil, apperr.Validation(apperr.ReasonBelowMinimumAmount, "order amount below code minimum")
	}

	return dc, nil
}
