package repository

import (
	"context"

	"github.com/Kwazak/umnfestival2026-sub001/internal/model"

	"gorm.io/gorm"
)

type TicketRepository interface {
	// CreateBatch inserts the issued tickets inside the payment-confirmation
	// transaction.
	CreateBatch(ctx context.Context, tx *gorm.DB, tickets []*model.Ticket) error
	CountByOrder(ctx context.Context, orderNumber string) (int64, error)
}

type ticketRepoImpl struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepoImpl{db: db}
}

func (r *ticketRepoImpl) CreateBatch(ctx context.Context, tx *gorm.DB, tickets []*model.Ticket) error {
	return tx.WithContext(ctx).Create(&tickets).Error
}

func (r *ticketRepoImpl) CountByOrder(ctx context.Context, orderNumber string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("order_number = ?", orderNumber).
		Count(&count).Error

	return count, err
}
