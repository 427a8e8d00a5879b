package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListInvoiceFilter struct {
	IsPaid      bool
	PaidSince   *time.Time
	CustomerID  snowflake.ID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter) ([]Invoice, error)

	// MarkPaid flips an unpaid invoice to paid. It affects no rows when the invoice is already paid.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (int64, error)

	// SetNumber assigns a number only while the invoice has none.
	SetNumber(ctx context.Context, db *gorm.DB, id snowflake.ID, number string, now time.Time) (int64, error)
	CountNumbersWithPrefix(ctx context.Context, db *gorm.DB, prefix string) (int64, error)
}
