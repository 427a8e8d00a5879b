package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
)

type CreateCustomerRequest struct {
	Name                  string `json:"name" validate:"required,max=200"`
	Email                 string `json:"email" validate:"omitempty,email"`
	Phone                 string `json:"phone" validate:"omitempty,max=40"`
	PaymentTerms          *int   `json:"payment_terms" validate:"omitempty,gte=1,lte=365"`
	ConsolidatedInvoicing bool   `json:"consolidated_invoicing"`
}

type ListCustomerRequest struct {
	Name      string
	PageToken string
	PageSize  int
}

type ListCustomerFilter struct {
	Name     string
	BeforeID snowflake.ID
	Limit    int
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	List(ctx context.Context, req ListCustomerRequest) (ListCustomerResponse, error)
	GetByID(ctx context.Context, id string) (Customer, error)
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrInvalidPaymentTerms = errors.New("invalid_payment_terms")
	ErrInvalidID           = errors.New("invalid_customer_id")
	ErrNotFound            = errors.New("customer_not_found")
)
