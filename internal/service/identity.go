package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/config"
	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/model"
	"github.com/Kwazak/umnfestival2026-sub001/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IdentityService finds-or-creates a lightweight buyer account and issues the
// checkout session credential. The duplicate-contact check here is a
// fast-fail for the UI; the authoritative re-check runs inside the
// draft-create transaction.
type IdentityService interface {
	CheckExisting(ctx context.Context, email, phone string) error
	Bootstrap(ctx context.Context, name, email, phone string) (*dto.SessionResponse, error)
	// ParseCredential returns the account ID a bearer credential is bound to.
	ParseCredential(credential string) (uint, error)
}

type identityServiceImpl struct {
	accountRepo repository.AccountRepository
	orderRepo   repository.OrderRepository
	secret      []byte
	ttl         time.Duration
}

func NewIdentityService(accountRepo repository.AccountRepository, orderRepo repository.OrderRepository, cfg *config.Session) IdentityService {
	return &identityServiceImpl{
		accountRepo: accountRepo,
		orderRepo:   orderRepo,
		secret:      []byte(cfg.Secret),
		ttl:         cfg.TTL,
	}
}

func (s *identityServiceImpl) CheckExisting(ctx context.Context, email, phone string) error {
	if email == "" {
		return apperr.ValidationField(apperr.ReasonNotFound, "email", "email is required")
	}
	if phone == "" {
		return apperr.ValidationField(apperr.ReasonNotFound, "phone", "phone is required")
	}

	existing, err := s.orderRepo.FindBlockingByContact(ctx, nil, email, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	// report which field collided so the form can point at it
	field := "phone"
	if existing.BuyerEmail == email {
		field = "email"
	}
	return apperr.ConflictField(apperr.ReasonDuplicateContact, field,
		"an order already exists for this contact")
}

func (s *identityServiceImpl) Bootstrap(ctx context.Context, name, email, phone string) (*dto.SessionResponse, error) {
	if name == "" {
		return nil, apperr.ValidationField(apperr.ReasonNotFound, "name", "name is required")
	}
	if err := s.CheckExisting(ctx, email, phone); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		// the order snapshot denormalizes these fields, so a returning
		// buyer's updated details must land on the account first
		if account.Name != name || account.Phone != phone {
			account.Name = name
			account.Phone = phone
			if err := s.accountRepo.Update(ctx, account); err != nil {
				return nil, fmt.Errorf("refresh account: %w", err)
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = &model.Account{Name: name, Email: email, Phone: phone}
		if err := s.accountRepo.Create(ctx, account); err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
	default:
		return nil, err
	}

	expiresAt := time.Now().Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(account.ID), 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	credential, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session credential: %w", err)
	}

	return &dto.SessionResponse{
		Credential: credential,
		ExpiresAt:  expiresAt,
	}, nil
}

func (s *identityServiceImpl) ParseCredential(credential string) (uint, error) {
	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("invalid session credential")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid credential subject: %w", err)
	}

	return uint(id), nil
}
