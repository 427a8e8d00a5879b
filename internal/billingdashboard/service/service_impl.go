package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/billingdashboard/domain"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	customerRepo customerdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("billingdashboard.service"),
		clock:        p.Clock,
		customerRepo: p.CustomerRepo,
	}
}

// GetBillingSummary runs the three bucket queries in one read-only transaction so a load counted
// as ready cannot also be counted inside an invoice.
func (s *Service) GetBillingSummary(ctx context.Context) (summary domain.BillingSummary, err error) {
	const op = "billing.summary"
	ctx, span := tracing.Start(ctx, op)
	defer func() { tracing.EndSpan(span, err) }()

	paidSince := s.clock.Now().Add(-invoicedomain.PaidWindow)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&loaddomain.Load{}).
			Select("COUNT(*) AS count, COALESCE(SUM(rate_customer), 0) AS amount").
			Where("status = ? AND invoice_id IS NULL", loaddomain.StatusDelivered).
			Scan(&summary.ReadyToInvoice).Error; err != nil {
			return fmt.Errorf("ready to invoice: %w", err)
		}
		if err := tx.Model(&invoicedomain.Invoice{}).
			Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
			Where("is_paid = ?", false).
			Scan(&summary.OutstandingInvoices).Error; err != nil {
			return fmt.Errorf("outstanding invoices: %w", err)
		}
		if err := tx.Model(&invoicedomain.Invoice{}).
			Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS amount").
			Where("is_paid = ? AND paid_date >= ?", true, paidSince).
			Scan(&summary.PaidLast30Days).Error; err != nil {
			return fmt.Errorf("paid last 30 days: %w", err)
		}
		return nil
	}, s.snapshotTx())
	if err != nil {
		s.log.Warn("billing summary fetch failed", zap.Error(err))
		return domain.BillingSummary{}, fetchFailed(op, err)
	}
	return summary, nil
}

type rollupRow struct {
	CustomerID            snowflake.ID    `gorm:"column:customer_id"`
	Name                  string          `gorm:"column:name"`
	ConsolidatedInvoicing bool            `gorm:"column:consolidated_invoicing"`
	LoadCount             int64           `gorm:"column:load_count"`
	Amount                decimal.Decimal `gorm:"column:amount"`
}

func (s *Service) ListReadyByCustomer(ctx context.Context) (resp domain.CustomerRollupResponse, err error) {
	const op = "billing.ready_by_customer"
	ctx, span := tracing.Start(ctx, op)
	defer func() { tracing.EndSpan(span, err) }()

	var rows []rollupRow
	query := `
		SELECT c.id AS customer_id,
		       c.name AS name,
		       c.consolidated_invoicing AS consolidated_invoicing,
		       COUNT(l.id) AS load_count,
		       COALESCE(SUM(l.rate_customer), 0) AS amount
		FROM loads l
		JOIN customers c ON c.id = l.customer_id
		WHERE l.status = ? AND l.invoice_id IS NULL
		GROUP BY c.id, c.name, c.consolidated_invoicing
		ORDER BY c.name ASC, c.id ASC`

	if err := s.db.WithContext(ctx).Raw(query, loaddomain.StatusDelivered).Scan(&rows).Error; err != nil {
		return domain.CustomerRollupResponse{}, fetchFailed(op, err)
	}

	customers := make([]domain.CustomerRollup, 0, len(rows))
	for _, row := range rows {
		customers = append(customers, domain.CustomerRollup{
			CustomerID:            row.CustomerID.String(),
			Name:                  row.Name,
			ConsolidatedInvoicing: row.ConsolidatedInvoicing,
			LoadCount:             row.LoadCount,
			Amount:                row.Amount,
		})
	}
	return domain.CustomerRollupResponse{Customers: customers}, nil
}

// snapshotTx asks postgres for a single snapshot across the summary queries. Other dialects keep
// their default, which is already serializable for sqlite.
func (s *Service) snapshotTx() *sql.TxOptions {
	if s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func fetchFailed(op string, err error) error {
	return billingerr.Dependency(op, fmt.Errorf("%w: %w", domain.ErrFetchFailed, err))
}
