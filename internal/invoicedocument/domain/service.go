package domain

import (
	"context"
	"errors"

	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
)

const (
	Folder         = "invoices"
	PDFContentType = "application/pdf"
)

type GenerateRequest struct {
	FileName string `json:"file_name" validate:"omitempty,max=200"`
}

// PersistResult is where a PDF ended up in the blob store.
type PersistResult struct {
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
}

type Service interface {
	GenerateInvoicePDF(ctx context.Context, invoice invoicedomain.InvoiceWithDetails) ([]byte, error)
	PersistInvoicePDF(ctx context.Context, data []byte, invoiceNumber string, fileName string) (PersistResult, error)

	// Generate renders the invoice, stores the PDF and records it.
	Generate(ctx context.Context, invoiceID string, req GenerateRequest) (Document, error)
	List(ctx context.Context, invoiceID string) ([]Document, error)
	Download(ctx context.Context, documentID string) (Document, []byte, error)
}

var (
	ErrInvalidDocumentID    = errors.New("invalid_document_id")
	ErrInvalidFileName      = errors.New("invalid_file_name")
	ErrInvalidInvoiceNumber = errors.New("invalid_invoice_number")
	ErrEmptyDocument        = errors.New("empty_document")
	ErrDocumentExists       = errors.New("document_exists")
	ErrNotFound             = errors.New("document_not_found")
	ErrObjectMissing        = errors.New("document_object_missing")
)
