package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/generation"
	"github.com/fpang/brand-studio/internal/metrics"
)

// TextGenerator is the slice of a Gemini client needed to probe a key.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string) (string, error)
}

// ValidationError is a failed API key check.
type ValidationError struct {
	Kind    generation.Kind
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidateAPIKey makes a minimal text request to confirm the key works
// before a server starts taking traffic.
func ValidateAPIKey(ctx context.Context, gen TextGenerator, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	_, err := gen.GenerateText(ctx, model, "hi")
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	if err != nil {
		classified := generation.Classify(err)
		result = classified.Kind.String()
		valErr = &ValidationError{Kind: classified.Kind, Err: err}
		switch classified.Kind {
		case generation.KindRateLimited, generation.KindQuotaExhausted:
			valErr.Message = "API quota exceeded or rate limited"
		case generation.KindAssetProcessing:
			valErr.Message = "API key rejected as malformed"
		default:
			valErr.Message = fmt.Sprintf("failed to validate API key (status %d)", classified.StatusCode)
		}
	}

	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if valErr != nil {
		log.Error().Err(err).Str("result", result).Dur("duration", elapsed).Msg("API key validation failed")
		return valErr
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}
