package kycerrors

import (
	"errors"
	"fmt"
)

// Category defines the normalized failure taxonomy for KYC client errors.
//
// Callers branch on the category instead of inspecting messages: transport
// failures are retryable at the caller's discretion, rejections carry the
// server message, precondition violations are programmer errors.
type Category string

const (
	// CategoryTransport indicates the request never reached the server or no response arrived
	CategoryTransport Category = "transport"

	// CategoryUploadRejected indicates the server answered success=false to an upload
	CategoryUploadRejected Category = "upload_rejected"

	// CategoryPrecondition indicates an operation was invoked out of the allowed order
	CategoryPrecondition Category = "precondition"

	// CategoryStatusFetch wraps any failed status check delivered to a poller subscriber
	CategoryStatusFetch Category = "status_fetch"

	// CategoryRejected indicates the server answered success=false to a non-upload call
	CategoryRejected Category = "rejected"

	// CategoryBadResponse indicates the server answered with a body that is not a valid envelope
	CategoryBadResponse Category = "bad_response"
)

// Error wraps KYC client failures with normalized categorization.
type Error struct {
	Category   Category
	Op         string // operation that failed, e.g. "upload_document"
	Message    string // server message when the server supplied one
	Code       string // server errorCode, if any
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("kyc %s [%s]", e.Op, e.Category)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a categorized error. Retryable is derived from the category:
// transport failures are worth retrying, everything else is not.
func New(category Category, op, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Op:         op,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == CategoryTransport,
	}
}

// Transport reports a request that never produced a response.
func Transport(op string, err error) *Error {
	return New(CategoryTransport, op, "request failed", err)
}

// UploadRejected reports an upload the server declined, keeping its message and code.
func UploadRejected(op, message, code string) *Error {
	e := New(CategoryUploadRejected, op, message, nil)
	e.Code = code
	return e
}

// Rejected reports a non-upload call the server declined.
func Rejected(op, message, code string) *Error {
	e := New(CategoryRejected, op, message, nil)
	e.Code = code
	return e
}

// BadResponse reports a response body that could not be interpreted.
func BadResponse(op, message string, err error) *Error {
	return New(CategoryBadResponse, op, message, err)
}

// Precondition reports an operation invoked out of order.
func Precondition(op, message string) *Error {
	return New(CategoryPrecondition, op, message, nil)
}

// StatusFetch wraps a failed status check so subscribers see one category
// regardless of whether the cause was transport or a rejection.
func StatusFetch(err error) *Error {
	e := New(CategoryStatusFetch, "fetch_status", "status check failed", err)
	e.Retryable = true
	return e
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Retryable
	}
	return false
}

// GetCategory extracts the outermost error category. Unknown errors report
// as transport since they never carried a server answer.
func GetCategory(err error) Category {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Category
	}
	return CategoryTransport
}

// HasCategory reports whether any error in the chain carries the category.
func HasCategory(err error, category Category) bool {
	for err != nil {
		var ke *Error
		if !errors.As(err, &ke) {
			return false
		}
		if ke.Category == category {
			return true
		}
		err = ke.Underlying
	}
	return false
}

func IsPrecondition(err error) bool { return HasCategory(err, CategoryPrecondition) }

func IsTransport(err error) bool { return HasCategory(err, CategoryTransport) }

func IsUploadRejected(err error) bool { return HasCategory(err, CategoryUploadRejected) }

func IsStatusFetch(err error) bool { return HasCategory(err, CategoryStatusFetch) }

// Sentinel errors for poller lifecycle misuse. Use errors.Is() to check.
var (
	ErrAlreadyRunning = errors.New("poller already running")
	ErrPollerStopped  = errors.New("poller stopped; create a new poller to watch again")
)
