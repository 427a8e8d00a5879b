package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tmsbilling/pkg/db/pagination"
)

type CreateLoadRequest struct {
	CustomerID   string           `json:"customer_id" validate:"required"`
	Origin       string           `json:"origin" validate:"required,max=200"`
	Destination  string           `json:"destination" validate:"required,max=200"`
	Commodity    string           `json:"commodity" validate:"max=200"`
	PickupDate   *time.Time       `json:"pickup_date"`
	RateCustomer *decimal.Decimal `json:"rate_customer"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	// DeliveryDate is recorded on the move to Delivered; it defaults to now.
	DeliveryDate *time.Time `json:"delivery_date"`
}

type ListLoadRequest struct {
	CustomerID string
	Status     string
	PageToken  string
	PageSize   int
}

type ListLoadFilter struct {
	CustomerID snowflake.ID
	Status     Status
	BeforeID   snowflake.ID
	Limit      int
}

type ListLoadResponse struct {
	pagination.PageInfo
	Loads []Load `json:"loads"`
}

type Service interface {
	Create(ctx context.Context, req CreateLoadRequest) (Load, error)
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (Load, error)
	GetByID(ctx context.Context, id string) (Load, error)
	List(ctx context.Context, req ListLoadRequest) (ListLoadResponse, error)
}

var (
	ErrInvalidID         = errors.New("invalid_load_id")
	ErrInvalidCustomer   = errors.New("invalid_customer_id")
	ErrInvalidOrigin     = errors.New("invalid_origin")
	ErrInvalidDest       = errors.New("invalid_destination")
	ErrInvalidCommodity  = errors.New("invalid_commodity")
	ErrInvalidRate       = errors.New("invalid_rate")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrAlreadyInvoiced   = errors.New("load_already_invoiced")
	ErrStatusChanged     = errors.New("load_status_changed")
	ErrCustomerNotFound  = errors.New("customer_not_found")
	ErrNotFound          = errors.New("load_not_found")
)
