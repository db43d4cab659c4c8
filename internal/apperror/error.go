package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is a typed failure carrying its HTTP mapping.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches on Code so errors.Is(err, ErrNotFound) works for any copy.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	ErrValidation  = New(http.StatusBadRequest, "validation_error", "Validation failed")
	ErrNotFound    = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict    = New(http.StatusConflict, "conflict", "Operation already in progress")
	ErrExtraction  = New(http.StatusUnprocessableEntity, "extraction_error", "Derivative database could not be read")
	ErrStorage     = New(http.StatusInternalServerError, "storage_error", "Artifact storage operation failed")
	ErrInternal    = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrPartialData = New(http.StatusOK, "partial_data", "Processing continued with degraded data")
)

func Validation(message string, details map[string]any) *Error {
	return ErrValidation.WithMessage(message).WithDetails(details)
}

func NotFound(message string) *Error {
	return ErrNotFound.WithMessage(message)
}

func Conflict(message string) *Error {
	return ErrConflict.WithMessage(message)
}

func Extraction(message string, err error) *Error {
	return ErrExtraction.WithMessage(message).WithInternal(err)
}

func Storage(message string, err error) *Error {
	return ErrStorage.WithMessage(message).WithInternal(err)
}

func Internal(message string, err error) *Error {
	return ErrInternal.WithMessage(message).WithInternal(err)
}

// Warning is a PartialData condition recorded for audit; it never aborts processing.
type Warning struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Stage, w.Subject, w.Message)
}

// ToHTTP maps any error to a status and a response body. Unknown errors and
// 5xx errors hide their internal cause.
func ToHTTP(err error) (int, gin.H) {
	var appErr *Error
	if errors.As(err, &appErr) {
		body := gin.H{"error": appErr.Message, "code": appErr.Code}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		return appErr.HTTPStatus, body
	}
	return http.StatusInternalServerError, gin.H{"error": ErrInternal.Message, "code": ErrInternal.Code}
}

func Respond(c *gin.Context, err error) {
	status, body := ToHTTP(err)
	c.JSON(status, body)
}
