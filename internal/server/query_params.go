package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tmsbilling/internal/invoice/domain"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

type invoiceListQuery struct {
	CustomerID    string `form:"customer_id"`
	CreatedFrom   string `form:"created_from"`
	CreatedTo     string `form:"created_to"`
	InvoiceNumber string `form:"invoice_number"`
}

func bindInvoiceListQuery(c *gin.Context) (invoicedomain.ListInvoiceRequest, error) {
	var query invoiceListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return invoicedomain.ListInvoiceRequest{}, invalidRequestError()
	}

	createdFrom, err := parseOptionalTime(query.CreatedFrom, false)
	if err != nil {
		return invoicedomain.ListInvoiceRequest{}, newValidationError("created_from", "invalid_created_from", "invalid created_from")
	}
	createdTo, err := parseOptionalTime(query.CreatedTo, true)
	if err != nil {
		return invoicedomain.ListInvoiceRequest{}, newValidationError("created_to", "invalid_created_to", "invalid created_to")
	}

	return invoicedomain.ListInvoiceRequest{
		CustomerID:    strings.TrimSpace(query.CustomerID),
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
		InvoiceNumber: strings.TrimSpace(query.InvoiceNumber),
	}, nil
}
