package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoices []domain.Invoice
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&invoices).Error; err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, nil
	}
	return &invoices[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter) ([]domain.Invoice, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("is_paid = ?", filter.IsPaid)
	if filter.PaidSince != nil {
		stmt = stmt.Where("paid_date >= ?", *filter.PaidSince)
	}
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("date_created >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("date_created <= ?", *filter.CreatedTo)
	}

	var invoices []domain.Invoice
	if err := stmt.Order("date_created desc, id desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(map[string]any{
			"is_paid":    true,
			"paid_date":  paidAt,
			"updated_at": paidAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) SetNumber(ctx context.Context, db *gorm.DB, id snowflake.ID, number string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND invoice_number IS NULL", id).
		Updates(map[string]any{
			"invoice_number": number,
			"updated_at":     now,
		})
	return res.RowsAffected, res.Error
}

// CountNumbersWithPrefix seeds the next sequence. A template containing LIKE wildcards only
// overcounts, and SetNumber's unique index still rejects a reused number.
func (r *repo) CountNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}
