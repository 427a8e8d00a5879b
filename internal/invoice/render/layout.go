package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/internal/config"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
)

var (
	ErrMissingCustomer = errors.New("invoice_customer_missing")
	ErrMissingLoads    = errors.New("invoice_loads_missing")
)

type RowKind int

const (
	RowCompany RowKind = iota
	RowMeta
	RowBillTo
	RowTerms
	RowTableHeader
	RowItem
	RowTotals
	RowInstructions
)

// Row heights in millimetres.
const (
	companyHeight      = 26
	metaHeight         = 24
	billToHeight       = 22
	termsHeight        = 12
	tableHeaderHeight  = 8
	itemHeight         = 7
	totalsHeight       = 16
	instructionsHeight = 18
)

const (
	dateLayout = "Jan 02, 2006"
	noValue    = "-"
)

// Row is one unbreakable block of the document.
type Row struct {
	Kind   RowKind
	Height float64
	Cells  []string
}

type Page struct {
	Rows []Row
}

func (p Page) Height() float64 {
	var h float64
	for _, r := range p.Rows {
		h += r.Height
	}
	return h
}

// Document is the laid-out invoice, ready to be emitted page by page.
type Document struct {
	Title    string
	Pages    []Page
	Subtotal string
	Total    string
}

// Items returns the load rows across every page.
func (d Document) Items() []Row {
	var items []Row
	for _, p := range d.Pages {
		for _, r := range p.Rows {
			if r.Kind == RowItem {
				items = append(items, r)
			}
		}
	}
	return items
}

var tableHeader = []string{"Load", "Commodity", "Origin", "Destination", "Delivered", "Amount"}

// Layout builds the rows of an invoice document and breaks them into pages no taller than
// cfg.PageHeightMM. Rows are never split and the table header opens every page that continues
// the load table.
func Layout(inv invoicedomain.InvoiceWithDetails, cfg config.BillingConfig) (Document, error) {
	if inv.Customer == nil {
		return Document{}, ErrMissingCustomer
	}
	if len(inv.Loads) == 0 {
		return Document{}, ErrMissingLoads
	}

	budget := cfg.CellCharBudget
	terms := inv.Customer.PaymentTermsDays()

	subtotal := decimal.Zero
	for _, l := range inv.Loads {
		subtotal = subtotal.Add(l.Rate())
	}
	total := subtotal
	if inv.TotalAmount.Valid {
		total = inv.TotalAmount.Decimal
	}

	status, paidOn := "OUTSTANDING", noValue
	if inv.IsPaid {
		status = "PAID"
		paidOn = formatDate(inv.PaidDate)
	}

	rows := []Row{
		{Kind: RowCompany, Height: companyHeight, Cells: []string{
			cfg.Company.Name, cfg.Company.Address, cfg.Company.Email, cfg.Company.Phone,
		}},
		{Kind: RowMeta, Height: metaHeight, Cells: []string{
			inv.DisplayNumber(), inv.DateCreated.Format(dateLayout), formatDate(inv.DueDate), status, paidOn,
		}},
		{Kind: RowBillTo, Height: billToHeight, Cells: []string{
			inv.Customer.Name, orDash(inv.Customer.Email), orDash(inv.Customer.Phone),
		}},
		{Kind: RowTerms, Height: termsHeight, Cells: []string{
			fmt.Sprintf("Net %d days", terms),
		}},
		{Kind: RowTableHeader, Height: tableHeaderHeight, Cells: tableHeader},
	}

	for _, l := range inv.Loads {
		rows = append(rows, Row{Kind: RowItem, Height: itemHeight, Cells: []string{
			Truncate(l.ID.String(), budget),
			Truncate(orDash(l.Commodity), budget),
			Truncate(l.Origin, budget),
			Truncate(l.Destination, budget),
			Truncate(formatDate(l.DeliveryDate), budget),
			Truncate(FormatMoney(l.Rate()), budget),
		}})
	}

	rows = append(rows,
		Row{Kind: RowTotals, Height: totalsHeight, Cells: []string{FormatMoney(subtotal), FormatMoney(total)}},
		Row{Kind: RowInstructions, Height: instructionsHeight, Cells: []string{
			fmt.Sprintf("Payment is due within %d days of the invoice date.", terms),
			cfg.PaymentInstructions,
		}},
	)

	return Document{
		Title:    "Invoice " + inv.DisplayNumber(),
		Pages:    paginate(rows, cfg.PageHeightMM),
		Subtotal: FormatMoney(subtotal),
		Total:    FormatMoney(total),
	}, nil
}

func paginate(rows []Row, limit float64) []Page {
	var (
		pages   []Page
		current Page
		used    float64
	)
	header := Row{Kind: RowTableHeader, Height: tableHeaderHeight, Cells: tableHeader}

	for _, r := range rows {
		if used+r.Height > limit && len(current.Rows) > 0 {
			pages = append(pages, current)
			current, used = Page{}, 0
			if r.Kind == RowItem {
				current.Rows = append(current.Rows, header)
				used = header.Height
			}
		}
		current.Rows = append(current.Rows, r)
		used += r.Height
	}
	if len(current.Rows) > 0 {
		pages = append(pages, current)
	}
	return pages
}

// Truncate shortens s to at most budget runes, marking the cut with "...".
func Truncate(s string, budget int) string {
	r := []rune(s)
	if budget <= 0 || len(r) <= budget {
		return s
	}
	if budget <= 3 {
		return string(r[:budget])
	}
	return string(r[:budget-3]) + "..."
}

// FormatMoney renders an amount as dollars with thousands separators, e.g. $1,250.50.
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	fixed := d.Abs().StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-3:]

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + "$" + b.String() + frac
}

func formatDate(t *time.Time) string {
	if t == nil {
		return noValue
	}
	return t.Format(dateLayout)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return noValue
	}
	return s
}
