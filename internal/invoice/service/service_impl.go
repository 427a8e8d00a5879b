package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/config"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/internal/lock"
	"github.com/smallbiznis/tmsbilling/internal/observability/metrics"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Validate      *validator.Validate
	BillingConfig *config.BillingConfigHolder
	Repo          invoicedomain.Repository
	CustomerRepo  customerdomain.Repository
	LoadRepo      loaddomain.Repository
	Locker        lock.Locker      `optional:"true"`
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	validate      *validator.Validate
	billingConfig *config.BillingConfigHolder

	repo         invoicedomain.Repository
	customerRepo customerdomain.Repository
	loadRepo     loaddomain.Repository
	locker       lock.Locker
	metrics      *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("invoice.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		validate:      p.Validate,
		billingConfig: p.BillingConfig,

		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		loadRepo:     p.LoadRepo,
		locker:       p.Locker,
		metrics:      p.Metrics,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (result invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.get"
	ctx, span := tracing.Start(ctx, op, attribute.String("invoice_id", id))
	defer func() { tracing.EndSpan(span, err) }()

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Validation(op, invoicedomain.ErrInvalidInvoiceID)
	}
	return s.loadDetails(ctx, s.db, op, invoiceID)
}

// loadDetails reads one invoice with its customer and linked loads.
func (s *Service) loadDetails(ctx context.Context, db *gorm.DB, op string, id snowflake.ID) (invoicedomain.InvoiceWithDetails, error) {
	invoice, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}
	if invoice == nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.NotFound(op, invoicedomain.ErrInvoiceNotFound)
	}
	details, err := s.withDetails(ctx, db, []invoicedomain.Invoice{*invoice})
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}
	return details[0], nil
}

// withDetails attaches customers and loads with one query each, regardless of how many invoices.
func (s *Service) withDetails(ctx context.Context, db *gorm.DB, invoices []invoicedomain.Invoice) ([]invoicedomain.InvoiceWithDetails, error) {
	out := make([]invoicedomain.InvoiceWithDetails, 0, len(invoices))
	if len(invoices) == 0 {
		return out, nil
	}

	invoiceIDs := make([]snowflake.ID, 0, len(invoices))
	customerIDs := make([]snowflake.ID, 0, len(invoices))
	seen := make(map[snowflake.ID]struct{}, len(invoices))
	for _, inv := range invoices {
		invoiceIDs = append(invoiceIDs, inv.ID)
		if _, ok := seen[inv.CustomerID]; !ok {
			seen[inv.CustomerID] = struct{}{}
			customerIDs = append(customerIDs, inv.CustomerID)
		}
	}

	customers, err := s.customerRepo.FindByIDs(ctx, db, customerIDs)
	if err != nil {
		return nil, err
	}
	loads, err := s.loadRepo.ListByInvoiceIDs(ctx, db, invoiceIDs)
	if err != nil {
		return nil, err
	}

	for _, inv := range invoices {
		item := invoicedomain.InvoiceWithDetails{Invoice: inv, Loads: loads[inv.ID]}
		if item.Loads == nil {
			item.Loads = []loaddomain.Load{}
		}
		if c, ok := customers[inv.CustomerID]; ok {
			item.Customer = &c
		}
		out = append(out, item)
	}
	return out, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
