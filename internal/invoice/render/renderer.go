package render

import (
	"context"

	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/config"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	"github.com/smallbiznis/tmsbilling/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Renderer turns an invoice with its customer and loads into PDF bytes.
type Renderer struct {
	billingConfig *config.BillingConfigHolder
}

func NewRenderer(billingConfig *config.BillingConfigHolder) *Renderer {
	return &Renderer{billingConfig: billingConfig}
}

func (r *Renderer) Render(ctx context.Context, inv invoicedomain.InvoiceWithDetails) (out []byte, err error) {
	const op = "invoice.render"
	_, span := tracing.Start(ctx, op,
		attribute.String("invoice_id", inv.ID.String()),
		attribute.Int("load_count", len(inv.Loads)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	doc, err := Layout(inv, r.billingConfig.Get())
	if err != nil {
		return nil, billingerr.Render(op, err)
	}
	out, err = emit(doc)
	if err != nil {
		return nil, billingerr.Render(op, err)
	}
	return out, nil
}
