package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DefaultPaymentTerms applies when a customer has no payment terms on file.
const DefaultPaymentTerms = 30

type Customer struct {
	ID                    snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name                  string            `gorm:"not null;index" json:"name"`
	Email                 string            `gorm:"column:email" json:"email,omitempty"`
	Phone                 string            `gorm:"column:phone" json:"phone,omitempty"`
	PaymentTerms          *int              `gorm:"column:payment_terms" json:"payment_terms,omitempty"`
	ConsolidatedInvoicing bool              `gorm:"not null;default:false" json:"consolidated_invoicing"`
	Metadata              datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt             time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"not null" json:"updated_at"`
}

// PaymentTermsDays is the net-days window used for due dates and documents.
func (c Customer) PaymentTermsDays() int {
	if c.PaymentTerms == nil || *c.PaymentTerms <= 0 {
		return DefaultPaymentTerms
	}
	return *c.PaymentTerms
}
