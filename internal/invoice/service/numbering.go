package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/invoice/format"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"github.com/smallbiznis/tmsbilling/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxNumberAttempts = 5

// AssignNumber gives an invoice its number. A number is written only once; an explicit number
// must be unique, a generated one is retried with the next sequence when it collides.
func (s *Service) AssignNumber(ctx context.Context, id string, req invoicedomain.AssignNumberRequest) (result invoicedomain.InvoiceWithDetails, err error) {
	const op = "invoice.assign_number"
	ctx, span := tracing.Start(ctx, op, attribute.String("invoice_id", id))
	defer func() { tracing.EndSpan(span, err) }()

	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Validation(op, invoicedomain.ErrInvalidInvoiceID)
	}
	req.InvoiceNumber = strings.TrimSpace(req.InvoiceNumber)
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Validation(op, invoicedomain.ErrInvalidInvoiceNumber)
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Dependency(op, err)
	}
	if invoice == nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.NotFound(op, invoicedomain.ErrInvoiceNotFound)
	}
	if invoice.InvoiceNumber != nil {
		return invoicedomain.InvoiceWithDetails{}, billingerr.Conflict(op, invoicedomain.ErrNumberAlreadyAssigned)
	}

	number, err := s.writeNumber(ctx, op, invoice.ID, req.InvoiceNumber, invoice.DateCreated)
	if err != nil {
		return invoicedomain.InvoiceWithDetails{}, err
	}
	s.log.Info("invoice number assigned", zap.String("invoice_id", invoiceID.String()), zap.String("invoice_number", number))

	return s.loadDetails(ctx, s.db, op, invoiceID)
}

func (s *Service) writeNumber(ctx context.Context, op string, invoiceID snowflake.ID, explicit string, createdAt time.Time) (string, error) {
	now := s.clock.Now()

	if explicit != "" {
		n, err := s.repo.SetNumber(ctx, s.db, invoiceID, explicit, now)
		switch {
		case db.IsDuplicateKeyErr(err):
			return "", billingerr.Conflict(op, invoicedomain.ErrDuplicateNumber)
		case err != nil:
			return "", billingerr.Dependency(op, err)
		case n == 0:
			return "", billingerr.Conflict(op, invoicedomain.ErrNumberAlreadyAssigned)
		}
		return explicit, nil
	}

	template := s.billingConfig.Get().InvoiceNumberTemplate
	seq, err := s.repo.CountNumbersWithPrefix(ctx, s.db, format.Prefix(template, createdAt))
	if err != nil {
		return "", billingerr.Dependency(op, err)
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		seq++
		number, err := format.Number(template, createdAt, seq)
		if err != nil {
			return "", billingerr.Validation(op, invoicedomain.ErrInvalidInvoiceNumber)
		}

		n, err := s.repo.SetNumber(ctx, s.db, invoiceID, number, now)
		switch {
		case db.IsDuplicateKeyErr(err):
			continue
		case err != nil:
			return "", billingerr.Dependency(op, err)
		case n == 0:
			return "", billingerr.Conflict(op, invoicedomain.ErrNumberAlreadyAssigned)
		}
		return number, nil
	}
	return "", billingerr.Conflict(op, invoicedomain.ErrDuplicateNumber)
}
