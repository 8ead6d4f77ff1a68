package generation

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// Kind classifies a generation failure.
type Kind int

const (
	// KindTransient is any failure worth retrying: 5xx, unexpected status,
	// transport error, or a success response without an image.
	KindTransient Kind = iota
	// KindRateLimited is an upstream 429. Never retried.
	KindRateLimited
	// KindQuotaExhausted is an upstream 402. Never retried.
	KindQuotaExhausted
	// KindAssetProcessing is an upstream 400, usually a reference image the
	// model could not read. Never retried.
	KindAssetProcessing
	// KindExhausted means every attempt failed with a transient error.
	KindExhausted
	// KindCanceled means the caller's context ended between attempts.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExhausted:
		return "quota_exhausted"
	case KindAssetProcessing:
		return "asset_processing"
	case KindExhausted:
		return "exhausted"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// ErrNoImage is returned by providers when a successful response carries no
// image payload.
var ErrNoImage = errors.New("no image returned in response")

// ProviderError is an HTTP-shaped failure from a model provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// Error is a classified generation failure. Message is safe to show to
// users; provider payloads stay in Err.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Attempts   int
	Err        error
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

// Classify maps a provider error onto a Kind. Status checks run in a fixed
// order: 429, 402, 400, then everything else is transient.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	status := 0
	var pe *ProviderError
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &pe):
		status = pe.StatusCode
	case errors.As(err, &apiErr):
		status = apiErr.Code
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Code
	}

	switch status {
	case http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			StatusCode: status,
			Message:    "the image service is busy right now, please wait a minute and try again",
			Err:        err,
		}
	case http.StatusPaymentRequired:
		return &Error{
			Kind:       KindQuotaExhausted,
			StatusCode: status,
			Message:    "the image service quota is exhausted, please try again later",
			Err:        err,
		}
	case http.StatusBadRequest:
		return &Error{
			Kind:       KindAssetProcessing,
			StatusCode: status,
			Message:    "the request or one of its reference images could not be processed",
			Err:        err,
		}
	}

	msg := "temporary error from the image service"
	if errors.Is(err, ErrNoImage) {
		msg = "the image service returned no image"
	}
	return &Error{Kind: KindTransient, StatusCode: status, Message: msg, Err: err}
}
