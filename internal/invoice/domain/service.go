package domain

import (
	"context"
	"errors"
	"time"
)

type CreateInvoiceRequest struct {
	CustomerID string     `json:"customer_id" validate:"required"`
	LoadIDs    []string   `json:"load_ids" validate:"required,min=1,max=500,dive,required"`
	DueDate    *time.Time `json:"due_date"`
	Notes      string     `json:"notes" validate:"max=2000"`
}

type ListInvoiceRequest struct {
	CustomerID    string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	InvoiceNumber string
}

type AssignNumberRequest struct {
	// InvoiceNumber is generated from the configured template when empty.
	InvoiceNumber string `json:"invoice_number" validate:"omitempty,max=64"`
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceWithDetails, error)
	MarkInvoicePaid(ctx context.Context, id string) (InvoiceWithDetails, error)
	GetOutstandingInvoices(ctx context.Context, req ListInvoiceRequest) ([]InvoiceWithDetails, error)
	GetPaidInvoicesLast30Days(ctx context.Context, req ListInvoiceRequest) ([]InvoiceWithDetails, error)
	GetByID(ctx context.Context, id string) (InvoiceWithDetails, error)
	AssignNumber(ctx context.Context, id string, req AssignNumberRequest) (InvoiceWithDetails, error)
}

// PaidWindow is how far back the paid invoice list and summary bucket look.
const PaidWindow = 30 * 24 * time.Hour

var (
	ErrInvalidInvoiceID     = errors.New("invalid_invoice_id")
	ErrInvalidCustomerID    = errors.New("invalid_customer_id")
	ErrEmptyLoadIDs         = errors.New("load_ids_required")
	ErrInvalidLoadID        = errors.New("invalid_load_id")
	ErrDuplicateLoadID      = errors.New("duplicate_load_id")
	ErrInvalidDueDate       = errors.New("invalid_due_date")
	ErrInvalidNotes         = errors.New("invalid_notes")
	ErrInvalidDateRange     = errors.New("invalid_date_range")
	ErrInvalidInvoiceNumber = errors.New("invalid_invoice_number")

	ErrLoadNotDelivered      = errors.New("load_not_delivered")
	ErrLoadAlreadyInvoiced   = errors.New("load_already_invoiced")
	ErrLoadCustomerMismatch  = errors.New("load_customer_mismatch")
	ErrLoadsClaimed          = errors.New("loads_claimed_concurrently")
	ErrCreationInProgress    = errors.New("invoice_creation_in_progress")
	ErrNumberAlreadyAssigned = errors.New("invoice_number_already_assigned")
	ErrDuplicateNumber       = errors.New("duplicate_invoice_number")

	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrLoadNotFound     = errors.New("load_not_found")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
)
