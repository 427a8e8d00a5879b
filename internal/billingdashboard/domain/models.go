package domain

import (
	"time"

	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
)

// LoadReadyForInvoice is a delivered, uninvoiced load with its customer.
type LoadReadyForInvoice struct {
	loaddomain.Load
	Customer          customerdomain.Customer `json:"customer"`
	DaysSinceDelivery int                     `json:"days_since_delivery"`
}

// DaysSince is floor((now - deliveredAt) / 1 day).
func DaysSince(now, deliveredAt time.Time) int {
	d := now.Sub(deliveredAt)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

type ReadyLoadsResponse struct {
	pagination.PageInfo
	Loads []LoadReadyForInvoice `json:"loads"`
}

// Bucket is a count with the sum of its amounts; missing amounts count as zero.
type Bucket struct {
	Count  int64           `json:"count" gorm:"column:count"`
	Amount decimal.Decimal `json:"amount" gorm:"column:amount"`
}

// BillingSummary is recomputed on every request and never cached.
type BillingSummary struct {
	ReadyToInvoice      Bucket `json:"ready_to_invoice"`
	OutstandingInvoices Bucket `json:"outstanding_invoices"`
	PaidLast30Days      Bucket `json:"paid_last_30_days"`
}

// CustomerRollup groups the ready-to-invoice loads of one customer.
type CustomerRollup struct {
	CustomerID            string          `json:"customer_id"`
	Name                  string          `json:"name"`
	ConsolidatedInvoicing bool            `json:"consolidated_invoicing"`
	LoadCount             int64           `json:"load_count"`
	Amount                decimal.Decimal `json:"amount"`
}

type CustomerRollupResponse struct {
	Customers []CustomerRollup `json:"customers"`
}
