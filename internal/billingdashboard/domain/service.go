package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
)

type ReadyLoadsRequest struct {
	CustomerID    string `form:"customer_id"`
	Search        string `form:"search"`
	InvoiceNumber string `form:"invoice_number"`
	pagination.Pagination
}

type Service interface {
	GetLoadsReadyForInvoice(ctx context.Context, req ReadyLoadsRequest) (ReadyLoadsResponse, error)
	GetBillingSummary(ctx context.Context) (BillingSummary, error)
	ListReadyByCustomer(ctx context.Context) (CustomerRollupResponse, error)
}

var (
	ErrInvalidCustomerID = errors.New("invalid_customer_id")
	ErrInvalidPageSize   = errors.New("invalid_page_size")
	ErrFetchFailed       = errors.New("fetch failed")
)
