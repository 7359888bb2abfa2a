package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	costdomain "github.com/smallbiznis/creditledger/internal/costcatalog/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
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
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

type errorRule struct {
	target  error
	status  int
	message string
}

// errorRules are matched in order with errors.Is.
var errorRules = []errorRule{
	{ledgerdomain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient credits"},
	{ledgerdomain.ErrOverRefund, http.StatusConflict, "refund exceeds the original spend"},
	{ledgerdomain.ErrIdempotencyKeyConflict, http.StatusConflict, "idempotency key already used for a different request"},
	{ledgerdomain.ErrAccountFrozen, http.StatusConflict, "account is frozen"},
	{ledgerdomain.ErrConcurrencyConflict, http.StatusConflict, "account is busy, retry the request"},
	{ledgerdomain.ErrAccountNotFound, http.StatusNotFound, "account not found"},
	{ledgerdomain.ErrOriginalNotFound, http.StatusNotFound, "original spend not found"},
	{ledgerdomain.ErrUnknownPricing, http.StatusNotFound, "no price configured for model and category"},
	{costdomain.ErrNotFound, http.StatusNotFound, "cost rule not found"},
	{ErrNotFound, http.StatusNotFound, "not found"},
	{ledgerdomain.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage unavailable"},
}

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
		if payload.Retryable {
			c.Header("Retry-After", "1")
		}
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

// respondBusinessError records err for logging and writes a payload carrying
// details the generic mapping does not know about.
func respondBusinessError(c *gin.Context, err error, details map[string]any) {
	_ = c.Error(err)
	status, payload := mapError(err)
	payload.Details = details
	c.AbortWithStatusJSON(status, errorResponse{Error: payload})
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

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return rule.status, errorPayload{
				Type:      rule.target.Error(),
				Message:   rule.message,
				Retryable: ledgerdomain.IsRetryable(err),
			}
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorPayload{
			Type:      "timeout",
			Message:   "request timed out",
			Retryable: true,
		}
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "request_canceled",
			Message: "request canceled",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return true
	}
	return ledgerdomain.Classify(err) == ledgerdomain.ClassValidation
}

func validationErrorCode(err error) string {
	for _, target := range []error{
		ErrInvalidRequest,
		pagination.ErrInvalidCursor,
		ledgerdomain.ErrInvalidAccount,
		ledgerdomain.ErrInvalidIdempotencyKey,
		ledgerdomain.ErrInvalidReason,
		ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrInvalidKind,
		costdomain.ErrInvalidModel,
		costdomain.ErrInvalidCategory,
		costdomain.ErrInvalidCost,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// classifyErrorForLog feeds the request logger: the type decides the log
// level, the code is the sentinel text.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if asValidationErrors(err) != nil {
		return ledgerdomain.ClassValidation, "invalid_request"
	}
	class := ledgerdomain.Classify(err)
	if class == ledgerdomain.ClassValidation {
		return class, validationErrorCode(err)
	}
	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			return class, rule.target.Error()
		}
	}
	return class, "internal_error"
}
