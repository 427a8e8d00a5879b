// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/tmsbilling/internal/customer/domain"
	loaddomain "github.com/smallbiznis/tmsbilling/internal/load/domain"
	"gorm.io/datatypes"
)

// Invoice is a billing document for one customer's delivered loads.
// TotalAmount is a snapshot taken at creation and is not recomputed.
type Invoice struct {
	ID            snowflake.ID        `gorm:"primaryKey" json:"id"`
	InvoiceNumber *string             `gorm:"size:64;uniqueIndex" json:"invoice_number"`
	CustomerID    snowflake.ID        `gorm:"not null;index" json:"customer_id"`
	DateCreated   time.Time           `gorm:"not null;index" json:"date_created"`
	DueDate       *time.Time          `json:"due_date"`
	TotalAmount   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	IsPaid        bool                `gorm:"not null;default:false;index" json:"is_paid"`
	PaidDate      *time.Time          `gorm:"index" json:"paid_date"`
	Notes         string              `json:"notes,omitempty"`
	Metadata      datatypes.JSONMap   `json:"metadata,omitempty"`
	CreatedAt     time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// DisplayNumber is the assigned number, or INV-{id} while none is assigned.
func (i Invoice) DisplayNumber() string {
	if i.InvoiceNumber != nil && *i.InvoiceNumber != "" {
		return *i.InvoiceNumber
	}
	return "INV-" + i.ID.String()
}

// Total treats a missing total as zero.
func (i Invoice) Total() decimal.Decimal {
	if !i.TotalAmount.Valid {
		return decimal.Zero
	}
	return i.TotalAmount.Decimal
}

// InvoiceWithDetails is an invoice with its customer and linked loads.
type InvoiceWithDetails struct {
	Invoice
	Customer *customerdomain.Customer `json:"customer"`
	Loads    []loaddomain.Load        `json:"loads"`
}
