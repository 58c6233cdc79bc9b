package finances

import (
	"context"
	"errors"

	"lexportal-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

type Service struct {
	DB *gorm.DB
}

// CreateInvoiceInput describes a new bill for a client.
type CreateInvoiceInput struct {
	UserID      uuid.UUID
	AmountCents int64
	Currency    string
	Description *string
}

func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	if in.AmountCents <= 0 {
		return nil, errors.New("amount must be positive")
	}
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}
	inv := &models.Invoice{
		UserID:      in.UserID,
		AmountCents: in.AmountCents,
		Currency:    currency,
		Description: in.Description,
		Status:      models.InvoiceStatusSent,
	}
	if err := s.DB.WithContext(ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// InvoicesForUser returns a client's invoices, newest first.
func (s *Service) InvoicesForUser(ctx context.Context, userID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&invoices).Error
	return invoices, err
}

// UnpaidBalanceCents sums the user's unpaid, non-voided invoices.
func (s *Service) UnpaidBalanceCents(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.Invoice{}).
		Where("user_id = ? AND paid = ?", userID, false).
		Where("status <> ?", models.InvoiceStatusVoided).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}
