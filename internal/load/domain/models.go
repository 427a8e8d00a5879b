package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingPickup Status = "Pending Pickup"
	StatusInTransit     Status = "In Transit"
	StatusDelivered     Status = "Delivered"
	StatusCancelled     Status = "Cancelled"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPendingPickup, StatusInTransit, StatusDelivered, StatusCancelled:
		return s, true
	default:
		return "", false
	}
}

// transitions lists the statuses reachable from each status. Delivered and Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPendingPickup: {StatusInTransit, StatusCancelled},
	StatusInTransit:     {StatusDelivered, StatusCancelled},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Load struct {
	ID           snowflake.ID        `gorm:"primaryKey" json:"id"`
	CustomerID   snowflake.ID        `gorm:"not null;index" json:"customer_id"`
	Origin       string              `gorm:"not null" json:"origin"`
	Destination  string              `gorm:"not null" json:"destination"`
	Commodity    string              `json:"commodity"`
	Status       Status              `gorm:"type:varchar(32);not null;index" json:"status"`
	PickupDate   *time.Time          `json:"pickup_date,omitempty"`
	DeliveryDate *time.Time          `gorm:"index" json:"delivery_date,omitempty"`
	RateCustomer decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"rate_customer"`
	InvoiceID    *snowflake.ID       `gorm:"index" json:"invoice_id"`
	CreatedAt    time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"not null" json:"updated_at"`
}

// Rate is the customer-facing rate with a missing rate counted as zero.
func (l Load) Rate() decimal.Decimal {
	if !l.RateCustomer.Valid {
		return decimal.Zero
	}
	return l.RateCustomer.Decimal
}

// ReadyForInvoice holds exactly when the load is Delivered and not linked to an invoice.
func (l Load) ReadyForInvoice() bool {
	return l.Status == StatusDelivered && l.InvoiceID == nil
}
