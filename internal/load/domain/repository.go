package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, load *Load) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Load, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Load, error)
	List(ctx context.Context, db *gorm.DB, filter ListLoadFilter) ([]*Load, error)
	ListByInvoiceIDs(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]Load, error)

	// UpdateStatus applies the change only while the load is still in `from` and not invoiced.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, deliveryDate *time.Time, now time.Time) (int64, error)

	// LinkToInvoice claims loads for an invoice. Only loads still ready for invoicing and owned by
	// customerID are updated; the returned count is how many were claimed.
	LinkToInvoice(ctx context.Context, db *gorm.DB, invoiceID, customerID snowflake.ID, ids []snowflake.ID, now time.Time) (int64, error)
}
