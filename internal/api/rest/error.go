package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/logger"
)

// ErrorCode represents standardized error codes for API responses
type ErrorCode string

const (
	ErrCodeBadRequest          ErrorCode = "bad_request"
	ErrCodeValidation          ErrorCode = "validation_failed"
	ErrCodeUnauthorized        ErrorCode = "unauthorized"
	ErrCodeForbidden           ErrorCode = "forbidden"
	ErrCodeNotFound            ErrorCode = "not_found"
	ErrCodeConflict            ErrorCode = "conflict"
	ErrCodeSaleClosed          ErrorCode = "sale_closed"
	ErrCodeAllowanceExceeded   ErrorCode = "allowance_exceeded"
	ErrCodeRateLimited         ErrorCode = "rate_limit_exceeded"
	ErrCodeInsufficientDeposit ErrorCode = "insufficient_deposit"
	ErrCodeDuplicateToken      ErrorCode = "duplicate_token"
	ErrCodeApprovalMismatch    ErrorCode = "approval_id_mismatch"
	ErrCodeTooManyApprovals    ErrorCode = "too_many_approvals"
	ErrCodePayoutTooLong       ErrorCode = "payout_too_long"
	ErrCodeReceiverRejected    ErrorCode = "receiver_rejected"
	ErrCodeInternalError       ErrorCode = "internal_error"
)

type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details string) {
	c.JSON(statusCode, errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func respondBadRequest(c *gin.Context, message string) {
	respondWithError(c, http.StatusBadRequest, ErrCodeBadRequest, message, "")
}

func respondNotFound(c *gin.Context, message string) {
	respondWithError(c, http.StatusNotFound, ErrCodeNotFound, message, "")
}

func respondInternalError(c *gin.Context, err error) {
	logger.Error(err, zap.String("path", c.Request.URL.Path))
	respondWithError(c, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", "")
}

// contractErrorCode classifies an engine error into an HTTP status and a
// stable error code.
func contractErrorCode(err error) (int, ErrorCode) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, ErrCodeValidation
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrLinkdropKeyNotFound),
		errors.Is(err, domain.ErrCheddarDepositNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrNotInitialized):
		return http.StatusConflict, ErrCodeConflict
	case errors.Is(err, domain.ErrInsufficientDeposit):
		return http.StatusPaymentRequired, ErrCodeInsufficientDeposit
	case errors.Is(err, domain.ErrSaleClosed):
		return http.StatusBadRequest, ErrCodeSaleClosed
	case errors.Is(err, domain.ErrAllowanceExceeded):
		return http.StatusBadRequest, ErrCodeAllowanceExceeded
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, ErrCodeRateLimited
	case errors.Is(err, domain.ErrDuplicateTokenID):
		return http.StatusBadRequest, ErrCodeDuplicateToken
	case errors.Is(err, domain.ErrApprovalIDMismatch):
		return http.StatusBadRequest, ErrCodeApprovalMismatch
	case errors.Is(err, domain.ErrTooManyApprovals):
		return http.StatusBadRequest, ErrCodeTooManyApprovals
	case errors.Is(err, domain.ErrPayoutTooLong):
		return http.StatusBadRequest, ErrCodePayoutTooLong
	case errors.Is(err, domain.ErrReceiverRejected):
		return http.StatusBadRequest, ErrCodeReceiverRejected
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// respondContractError maps engine errors to HTTP responses. Unknown errors
// are treated as internal failures and logged.
func respondContractError(c *gin.Context, err error) {
	status, code := contractErrorCode(err)
	if status == http.StatusInternalServerError {
		respondInternalError(c, err)
		return
	}
	respondWithError(c, status, code, err.Error(), "")
}
