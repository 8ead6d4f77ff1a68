package studio

import (
	"errors"
	"net/http"

	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/generation"
)

// Kind is the client-facing category of a failed action.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAsset
	KindUnauthorized
	KindNotFound
	KindInsufficientBalance
	KindQuotaExhausted
	KindRateLimited
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAsset:
		return "asset_processing"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindRateLimited:
		return "rate_limited"
	case KindExhausted:
		return "exhausted"
	default:
		return "internal"
	}
}

// Status maps a kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindAsset:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInsufficientBalance, KindQuotaExhausted:
		return http.StatusPaymentRequired
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by every Service operation. Message is safe to show to
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// AsError returns err as an *Error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return newError(KindInternal, "internal error", err)
}

const (
	msgInsufficient = "insufficient balance for this action, add credits to continue"
	msgExhausted    = "we could not complete this request right now, please try again shortly"
)

func validationError(err error) *Error {
	var ve *brief.ValidationError
	if errors.As(err, &ve) {
		return newError(KindValidation, ve.Error(), err)
	}
	return newError(KindValidation, "invalid request", err)
}

// generationError converts a classified provider failure. Provider payloads
// stay in Err; clients get the classified message.
func generationError(err error) *Error {
	ge := generation.Classify(err)
	switch ge.Kind {
	case generation.KindRateLimited:
		return newError(KindRateLimited, ge.Message, err)
	case generation.KindQuotaExhausted:
		return newError(KindQuotaExhausted, ge.Message, err)
	case generation.KindAssetProcessing:
		return newError(KindAsset, ge.Message, err)
	case generation.KindCanceled:
		return newError(KindInternal, "request canceled", err)
	default:
		return newError(KindExhausted, msgExhausted, err)
	}
}
