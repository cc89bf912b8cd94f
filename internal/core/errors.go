// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenRevoked = errors.New("token revoked")

	// Ledger sentinels, raised at the storage layer; the service maps them
	// to typed business errors for the API.
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDuplicateReference = errors.New("duplicate external reference")
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details any    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func UnauthorizedError(message string) *AppError {
	return NewAppError(401, "UNAUTHORIZED", message)
}

func ForbiddenError(message string) *AppError {
	return NewAppError(403, "FORBIDDEN", message)
}

func DuplicateError(resource string) *AppError {
	return NewAppError(409, "DUPLICATE", resource+" already exists")
}

func TokenExpiredError() *AppError {
	return NewAppError(401, "TOKEN_EXPIRED", "access token has expired")
}

func TokenInvalidError() *AppError {
	return NewAppError(401, "TOKEN_INVALID", "access token is invalid")
}

func TokenRevokedError() *AppError {
	return NewAppError(401, "TOKEN_REVOKED", "access token has been revoked")
}

// InsufficientCreditsError carries the exact shortfall so clients can
// prompt a top-up.
func InsufficientCreditsError(required, current int64) *AppError {
	return NewAppError(
		402,
		"INSUFFICIENT_CREDITS",
		"insufficient credits",
	).WithDetails(map[string]int64{
		"required": required,
		"current":  current,
	})
}

func MaintenanceError() *AppError {
	return NewAppError(
		503,
		"MAINTENANCE",
		"service is temporarily unavailable for maintenance",
	)
}

func VerificationFailedError(reference string) *AppError {
	return NewAppError(
		402,
		"VERIFICATION_FAILED",
		fmt.Sprintf("payment %q could not be verified", reference),
	)
}

func FormatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "invalid request"
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, formatFieldError(fieldErr))
	}

	return strings.Join(messages, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
