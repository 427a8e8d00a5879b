package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MarkInvoicePaid records payment once. Repeating the call returns the invoice with its original
// paid date; there is no way back to unpaid.
func (s *Service) MarkInvoicePaid(ctx context.Context, id string) (result invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.mark_paid"
	ctx, span := tracing.Start(ctx, op, attribute.String("invoice_id", id))
	defer func() { tracing.EndSpan(span, err) }()

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Validation(op, invoicedomain.ErrInvalidInvoiceID)
	}

	now := s.clock.Now()
	updated, err := s.repo.MarkPaid(ctx, s.db, invoiceID, now)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}

	result, err = s.loadDetails(ctx, s.db, op, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, err
	}

	if updated == 1 {
		s.metrics.RecordInvoicePaid(ctx)
		s.log.Info("invoice paid",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("total_amount", result.Total().StringFixed(2)),
		)
	}
	return result, nil
}

func (s *Service) GetOutstandingInvoices(ctx context.Context, req invoicedomain.ListInvoiceRequest) (result []invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.list_outstanding"
	ctx, span := tracing.Start(ctx, op)
	defer func() { tracing.EndSpan(span, err) }()

	filter, err := s.listFilter(req)
	if err != nil {
		return nil, billingerr.Validation(op, err)
	}
	filter.IsPaid = false
	return s.list(ctx, op, filter, req.InvoiceNumber)
}

func (s *Service) GetPaidInvoicesLast30Days(ctx context.Context, req invoicedomain.ListInvoiceRequest) (result []invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.list_paid"
	ctx, span := tracing.Start(ctx, op)
	defer func() { tracing.EndSpan(span, err) }()

	filter, err := s.listFilter(req)
	if err != nil {
		return nil, billingerr.Validation(op, err)
	}
	since := s.clock.Now().Add(-invoicedomain.PaidWindow)
	filter.IsPaid = true
	filter.PaidSince = &since
	return s.list(ctx, op, filter, req.InvoiceNumber)
}

func (s *Service) listFilter(req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceFilter, error) {
	var filter invoicedomain.ListInvoiceFilter

	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return filter, invoicedomain.ErrInvalidCustomerID
		}
		filter.CustomerID = id
	}
	if req.CreatedFrom != nil && req.CreatedTo != nil && req.CreatedTo.Before(*req.CreatedFrom) {
		return filter, invoicedomain.ErrInvalidDateRange
	}
	filter.CreatedFrom = utcPtr(req.CreatedFrom)
	filter.CreatedTo = utcPtr(req.CreatedTo)
	return filter, nil
}

// list matches the number filter against DisplayNumber so unnumbered invoices are found by
// their INV-{id} label too.
func (s *Service) list(ctx context.Context, op string, filter invoicedomain.ListInvoiceFilter, number string) ([]invoicedomain.InvoiceWithDetails, error) {
	invoices, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, billingerr.Dependency(op, err)
	}

	if needle := strings.ToLower(strings.TrimSpace(number)); needle != "" {
		matched := invoices[:0]
		for _, inv := range invoices {
			if strings.Contains(strings.ToLower(inv.DisplayNumber()), needle) {
				matched = append(matched, inv)
			}
		}
		invoices = matched
	}

	out, err := s.withDetails(ctx, s.db, invoices)
	if err != nil {
		return nil, billingerr.Dependency(op, err)
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
