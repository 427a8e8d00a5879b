package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/internal/lock"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const creationLockTTL = 30 * time.Second

// CreateInvoice bills a set of delivered, uninvoiced loads of one customer.
//
// Every load is checked before anything is written. The invoice insert and the load claim run in
// one transaction; the claim only updates loads that are still unclaimed, so if a concurrent
// request took any of them the whole transaction rolls back with a conflict.
func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (result invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.create"
	ctx, span := tracing.Start(ctx, op,
		attribute.String("customer_id", req.CustomerID),
		attribute.Int("load_count", len(req.LoadIDs)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	customerID, loadIDs, err := s.parseCreateRequest(ctx, req)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Validation(op, err)
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}
	if customer == nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.NotFound(op, invoicedomain.ErrCustomerNotFound)
	}

	if s.locker != nil {
		release, lockErr := s.locker.Acquire(ctx, "invoice:create:"+customerID.String(), creationLockTTL)
		switch {
		case errors.Is(lockErr, lock.ErrNotAcquired):
			return invoicedomain.InvoiceWithDetails{}, billingerr.Conflict(op, invoicedomain.ErrCreationInProgress)
		case lockErr != nil:
			return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, lockErr)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				s.log.Warn("release invoice creation lock", zap.String("customer_id", customerID.String()), zap.Error(relErr))
			}
		}()
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loads, err := s.loadRepo.FindByIDs(ctx, tx, loadIDs)
		if err != nil {
			return billingerr.Dependency(op, err)
		}
		total, err := checkEligible(op, customerID, loadIDs, loads)
		if err != nil {
			return err
		}

		dueDate := now.AddDate(0, 0, customer.PaymentTermsDays())
		if req.DueDate != nil {
			dueDate = req.DueDate.UTC()
			if dueDate.Before(now.Truncate(24 * time.Hour)) {
				return billingerr.Validation(op, invoicedomain.ErrInvalidDueDate)
			}
		}

		invoice := invoicedomain.Invoice{
			ID:          s.genID.Generate(),
			CustomerID:  customerID,
			DateCreated: now,
			DueDate:     &dueDate,
			TotalAmount: decimal.NewNullDecimal(total),
			Notes:       strings.TrimSpace(req.Notes),
			Metadata:    datatypes.JSONMap{"load_count": len(loads)},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			return billingerr.Dependency(op, err)
		}

		claimed, err := s.loadRepo.LinkToInvoice(ctx, tx, invoice.ID, customerID, loadIDs, now)
		if err != nil {
			return billingerr.Dependency(op, err)
		}
		if claimed != int64(len(loadIDs)) {
			return billingerr.Conflict(op, invoicedomain.ErrLoadsClaimed)
		}

		for i := range loads {
			loads[i].InvoiceID = &invoice.ID
			loads[i].UpdatedAt = now
		}
		result = invoicedomain.InvoiceWithDetails{
			Invoice:  invoice,
			Customer: customer,
			Loads:    loads,
		}
		return nil
	})
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}

	s.metrics.RecordInvoiceCreated(ctx, len(result.Loads), result.Total().InexactFloat64())
	s.log.Info("invoice created",
		zap.String("invoice_id", result.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int("load_count", len(result.Loads)),
		zap.String("total_amount", result.Total().StringFixed(2)),
	)
	return result, nil
}

func (s *Service) parseCreateRequest(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (snowflake.ID, []snowflake.ID, error) {
	if len(req.LoadIDs) == 0 {
		return 0, nil, invoicedomain.ErrEmptyLoadIDs
	}
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return 0, nil, createFieldError(err)
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return 0, nil, invoicedomain.ErrInvalidCustomerID
	}

	loadIDs := make([]snowflake.ID, 0, len(req.LoadIDs))
	seen := make(map[snowflake.ID]struct{}, len(req.LoadIDs))
	for _, raw := range req.LoadIDs {
		id, err := parseID(raw)
		if err != nil {
			return 0, nil, invoicedomain.ErrInvalidLoadID
		}
		if _, dup := seen[id]; dup {
			return 0, nil, invoicedomain.ErrDuplicateLoadID
		}
		seen[id] = struct{}{}
		loadIDs = append(loadIDs, id)
	}
	return customerID, loadIDs, nil
}

// checkEligible verifies every requested load exists, belongs to the customer, is delivered and
// is not yet invoiced. It returns the sum of their rates with missing rates counted as zero.
func checkEligible(op string, customerID snowflake.ID, requested []snowflake.ID, loads []loaddomain.Load) (decimal.Decimal, error) {
	if len(loads) != len(requested) {
		return decimal.Zero, billingerr.NotFound(op, invoicedomain.ErrLoadNotFound)
	}

	total := decimal.Zero
	for _, l := range loads {
		switch {
		case l.CustomerID != customerID:
			return decimal.Zero, billingerr.Validation(op, invoicedomain.ErrLoadCustomerMismatch)
		case l.Status != loaddomain.StatusDelivered:
			return decimal.Zero, billingerr.Validation(op, invoicedomain.ErrLoadNotDelivered)
		case l.InvoiceID != nil:
			return decimal.Zero, billingerr.Validation(op, invoicedomain.ErrLoadAlreadyInvoiced)
		}
		total = total.Add(l.Rate())
	}
	return total, nil
}

func createFieldError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch field := verrs[0].StructField(); {
	case field == "CustomerID":
		return invoicedomain.ErrInvalidCustomerID
	case strings.HasPrefix(field, "LoadIDs"):
		return invoicedomain.ErrInvalidLoadID
	case field == "Notes":
		return invoicedomain.ErrInvalidNotes
	default:
		return err
	}
}
