package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tmsbilling/internal/authorization"
	billingdashboarddomain "github.com/smallbiznis/tmsbilling/internal/billingdashboard/domain"
	"github.com/smallbiznis/tmsbilling/internal/billingerr"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidRole):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{Field: "request", Code: "invalid_request", Message: "invalid request"},
			},
		}
	}

	code := billingerr.CodeOf(err)
	switch billingerr.KindOf(err) {
	case billingerr.KindValidation:
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	case billingerr.KindConflict:
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    code,
			Message: humanize(code),
		}
	case billingerr.KindNotFound:
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Code:    code,
			Message: humanize(code),
		}
	case billingerr.KindRender:
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "render_error",
			Message: "invoice document could not be rendered",
		}
	case billingerr.KindDependency:
		message := "upstream dependency failed"
		if errors.Is(err, billingdashboarddomain.ErrFetchFailed) {
			message = billingdashboarddomain.ErrFetchFailed.Error()
		}
		return http.StatusBadGateway, errorPayload{
			Type:    "dependency_error",
			Message: message,
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// classifyErrorForLog feeds the request logger with (type, code).
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		code := "validation_error"
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return "validation_error", code
	}
	if kind := billingerr.KindOf(err); kind != "" {
		code := string(kind)
		// Dependency causes carry driver text; only the kind is logged for them.
		if kind != billingerr.KindDependency && kind != billingerr.KindRender {
			code = billingerr.CodeOf(err)
		}
		return string(kind), code
	}
	_, payload := mapError(err)
	return payload.Type, payload.Type
}

var validationFields = map[string]string{
	"invalid_customer_id":       "customer_id",
	"invalid_invoice_id":        "id",
	"invalid_load_id":           "load_ids",
	"load_ids_required":         "load_ids",
	"duplicate_load_id":         "load_ids",
	"load_not_delivered":        "load_ids",
	"load_already_invoiced":     "load_ids",
	"load_customer_mismatch":    "load_ids",
	"invalid_due_date":          "due_date",
	"invalid_notes":             "notes",
	"invalid_date_range":        "created_from",
	"invalid_invoice_number":    "invoice_number",
	"invalid_page_size":         "page_size",
	"invalid_page_token":        "page_token",
	"invalid_document_id":       "document_id",
	"invalid_file_name":         "file_name",
	"invalid_name":              "name",
	"invalid_email":             "email",
	"invalid_phone":             "phone",
	"invalid_payment_terms":     "payment_terms",
	"invalid_origin":            "origin",
	"invalid_destination":       "destination",
	"invalid_commodity":         "commodity",
	"invalid_rate":              "rate_customer",
	"invalid_status":            "status",
	"invalid_status_transition": "status",
}

func validationErrorField(code string) string {
	if field, ok := validationFields[code]; ok {
		return field
	}
	return "request"
}

func validationErrorMessage(code string) string {
	if code == "" {
		return "validation error"
	}
	return humanize(code)
}

func humanize(code string) string {
	return strings.ReplaceAll(code, "_", " ")
}
