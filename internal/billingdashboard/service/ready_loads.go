package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tmsbilling/internal/billingdashboard/domain"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// deliveredExpr orders loads imported without a delivery date by their last update.
const deliveredExpr = "COALESCE(loads.delivery_date, loads.updated_at)"

type readyCursor struct {
	deliveredAt time.Time
	id          snowflake.ID
}

// GetLoadsReadyForInvoice lists delivered loads with no invoice, newest delivery first. The
// invoice number filter matches loads whose customer already has an invoice with that text in its
// number, since a ready load has no invoice of its own.
func (s *Service) GetLoadsReadyForInvoice(ctx context.Context, req domain.ReadyLoadsRequest) (resp domain.ReadyLoadsResponse, err error) {
	const op = "billing.ready_loads"
	ctx, span := tracing.Start(ctx, op, attribute.Int("page_size", req.PageSize))
	defer func() { tracing.EndSpan(span, err) }()

	var customerID snowflake.ID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		customerID, err = snowflake.ParseString(raw)
		if err != nil || customerID <= 0 {
			return domain.ReadyLoadsResponse{}, billingerr.Validation(op, domain.ErrInvalidCustomerID)
		}
	}
	if req.PageSize < 0 {
		return domain.ReadyLoadsResponse{}, billingerr.Validation(op, domain.ErrInvalidPageSize)
	}
	pageSize := min(req.PageSize, pagination.MaxPageSize)

	cursor, err := decodeReadyCursor(req.PageToken)
	if err != nil {
		return domain.ReadyLoadsResponse{}, billingerr.Validation(op, err)
	}

	stmt := s.db.WithContext(ctx).
		Model(&loaddomain.Load{}).
		Select("loads.*").
		Joins("JOIN customers ON customers.id = loads.customer_id").
		Where("loads.status = ? AND loads.invoice_id IS NULL", loaddomain.StatusDelivered)
	stmt = applyReadyFilters(stmt, customerID, req.Search, req.InvoiceNumber)
	if cursor != nil {
		stmt = stmt.Where(
			"("+deliveredExpr+" < ? OR ("+deliveredExpr+" = ? AND loads.id < ?))",
			cursor.deliveredAt, cursor.deliveredAt, cursor.id,
		)
	}
	stmt = stmt.Order(deliveredExpr + " DESC").Order("loads.id DESC")
	if pageSize > 0 {
		stmt = stmt.Limit(pageSize + 1)
	}

	var loads []loaddomain.Load
	if err := stmt.Find(&loads).Error; err != nil {
		return domain.ReadyLoadsResponse{}, fetchFailed(op, err)
	}
	loads, pageInfo := pagination.Trim(loads, pageSize, func(l loaddomain.Load) pagination.Cursor {
		return pagination.Cursor{ID: l.ID.String(), SortKey: deliveredAt(l).Format(time.RFC3339Nano)}
	})

	customerIDs := make([]snowflake.ID, 0, len(loads))
	for _, l := range loads {
		customerIDs = append(customerIDs, l.CustomerID)
	}
	customers, err := s.customerRepo.FindByIDs(ctx, s.db, customerIDs)
	if err != nil {
		return domain.ReadyLoadsResponse{}, fetchFailed(op, err)
	}

	now := s.clock.Now()
	out := make([]domain.LoadReadyForInvoice, 0, len(loads))
	for _, l := range loads {
		out = append(out, domain.LoadReadyForInvoice{
			Load:              l,
			Customer:          customers[l.CustomerID],
			DaysSinceDelivery: domain.DaysSince(now, deliveredAt(l)),
		})
	}
	return domain.ReadyLoadsResponse{PageInfo: pageInfo, Loads: out}, nil
}

func applyReadyFilters(stmt *gorm.DB, customerID snowflake.ID, search, invoiceNumber string) *gorm.DB {
	if customerID != 0 {
		stmt = stmt.Where("loads.customer_id = ?", customerID)
	}
	if term := strings.ToLower(strings.TrimSpace(search)); term != "" {
		like := "%" + term + "%"
		stmt = stmt.Where(
			"(LOWER(customers.name) LIKE ? OR LOWER(loads.origin) LIKE ? OR LOWER(loads.destination) LIKE ? OR LOWER(loads.commodity) LIKE ?)",
			like, like, like, like,
		)
	}
	if number := strings.ToLower(strings.TrimSpace(invoiceNumber)); number != "" {
		stmt = stmt.Where(
			"loads.customer_id IN (SELECT invoices.customer_id FROM invoices WHERE LOWER(invoices.invoice_number) LIKE ?)",
			"%"+number+"%",
		)
	}
	return stmt
}

func decodeReadyCursor(token string) (*readyCursor, error) {
	c, err := pagination.DecodeCursor(token)
	if err != nil || c == nil {
		return nil, err
	}
	id, err := snowflake.ParseString(c.ID)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	at, err := time.Parse(time.RFC3339Nano, c.SortKey)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	return &readyCursor{deliveredAt: at.UTC(), id: id}, nil
}

func deliveredAt(l loaddomain.Load) time.Time {
	if l.DeliveryDate != nil {
		return l.DeliveryDate.UTC()
	}
	return l.UpdatedAt.UTC()
}
