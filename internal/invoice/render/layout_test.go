package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
	"github.com/smallbiznis/tmsbilling/internal/config"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func invoiceWith(rates ...string) invoicedomain.InvoiceWithDetails {
	terms := 45
	delivered := created.Add(-24 * time.Hour)
	due := created.AddDate(0, 0, terms)

	inv := invoicedomain.InvoiceWithDetails{
		Invoice: invoicedomain.Invoice{
			ID:          snowflake.ID(1001),
			CustomerID:  snowflake.ID(7),
			DateCreated: created,
			DueDate:     &due,
		},
		Customer: &customerdomain.Customer{
			ID:           snowflake.ID(7),
			Name:         "Acme Corp",
			Email:        "ap@acme.example",
			PaymentTerms: &terms,
		},
	}
	total := decimal.Zero
	for i, r := range rates {
		rate := decimal.RequireFromString(r)
		total = total.Add(rate)
		inv.Loads = append(inv.Loads, loaddomain.Load{
			ID:           snowflake.ID(2000 + i),
			CustomerID:   7,
			Origin:       "Dallas, TX",
			Destination:  "Memphis, TN",
			Commodity:    "Steel coils",
			Status:       loaddomain.StatusDelivered,
			DeliveryDate: &delivered,
			RateCustomer: decimal.NewNullDecimal(rate),
		})
	}
	inv.TotalAmount = decimal.NewNullDecimal(total)
	return inv
}

func TestLayoutOneRowPerLoadAndTotals(t *testing.T) {
	doc, err := Layout(invoiceWith("100", "250.50", "75"), config.DefaultBillingConfig())
	require.NoError(t, err)

	assert.Len(t, doc.Items(), 3)
	assert.Equal(t, "$425.50", doc.Subtotal)
	assert.Equal(t, "$425.50", doc.Total)
	assert.Equal(t, "Invoice INV-1001", doc.Title)
	require.Len(t, doc.Pages, 1)

	var meta, terms, instructions Row
	for _, r := range doc.Pages[0].Rows {
		switch r.Kind {
		case RowMeta:
			meta = r
		case RowTerms:
			terms = r
		case RowInstructions:
			instructions = r
		}
	}
	assert.Equal(t, []string{"INV-1001", "Mar 10, 2025", "Apr 24, 2025", "OUTSTANDING", "-"}, meta.Cells)
	assert.Equal(t, "Net 45 days", terms.Cells[0])
	assert.Contains(t, instructions.Cells[0], "45 days")
}

func TestLayoutPaidBadge(t *testing.T) {
	inv := invoiceWith("10")
	paidAt := created.AddDate(0, 0, 3)
	inv.IsPaid = true
	inv.PaidDate = &paidAt

	doc, err := Layout(inv, config.DefaultBillingConfig())
	require.NoError(t, err)
	meta := doc.Pages[0].Rows[1]
	require.Equal(t, RowMeta, meta.Kind)
	assert.Equal(t, "PAID", meta.Cells[3])
	assert.Equal(t, "Mar 13, 2025", meta.Cells[4])
}

func TestLayoutPaginatesWithoutSplittingRows(t *testing.T) {
	rates := make([]string, 80)
	for i := range rates {
		rates[i] = "10"
	}
	cfg := config.DefaultBillingConfig()
	doc, err := Layout(invoiceWith(rates...), cfg)
	require.NoError(t, err)

	require.Greater(t, len(doc.Pages), 1)
	assert.Len(t, doc.Items(), 80)
	assert.Equal(t, "$800.00", doc.Total)

	for i, p := range doc.Pages {
		assert.LessOrEqual(t, p.Height(), cfg.PageHeightMM, "page %d", i)
		if i > 0 && p.Rows[0].Kind != RowTotals && p.Rows[0].Kind != RowInstructions {
			assert.Equal(t, RowTableHeader, p.Rows[0].Kind, "page %d", i)
		}
	}
}

func TestLayoutTruncatesCells(t *testing.T) {
	inv := invoiceWith("1250")
	inv.Loads[0].Commodity = "Refrigerated pharmaceuticals, temperature controlled"

	cfg := config.DefaultBillingConfig()
	doc, err := Layout(inv, cfg)
	require.NoError(t, err)

	item := doc.Items()[0]
	assert.Equal(t, "Refrigerated ph...", item.Cells[1])
	assert.Equal(t, "$1,250.00", item.Cells[5])
	for _, c := range item.Cells {
		assert.LessOrEqual(t, len([]rune(c)), cfg.CellCharBudget)
	}
}

func TestLayoutRequiresCustomer(t *testing.T) {
	inv := invoiceWith("10")
	inv.Customer = nil
	_, err := Layout(inv, config.DefaultBillingConfig())
	assert.ErrorIs(t, err, ErrMissingCustomer)
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"0":           "$0.00",
		"425.5":       "$425.50",
		"1234567.891": "$1,234,567.89",
		"-999.99":     "-$999.99",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMoney(decimal.RequireFromString(in)), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 18))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func TestRendererProducesPDF(t *testing.T) {
	r := NewRenderer(config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))

	out, err := r.Render(context.Background(), invoiceWith("100", "250.50", "75"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestRendererMissingCustomerIsRenderError(t *testing.T) {
	r := NewRenderer(config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()))
	inv := invoiceWith("10")
	inv.Customer = nil

	_, err := r.Render(context.Background(), inv)
	assert.ErrorIs(t, err, billingerr.ErrRender)
	assert.ErrorIs(t, err, ErrMissingCustomer)
}
