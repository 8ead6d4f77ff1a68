// Package generation invokes an image model with a bounded retry policy and
// classifies provider failures into retryable and terminal kinds.
package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/brand-studio/internal/refassets"
)

// Part is one element of the ordered message sent to the model: either
// inline image data or text.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// Image is a generated image.
type Image struct {
	MIMEType string
	Data     []byte
	Text     string
}

// Provider generates an image from ordered parts. Implementations return
// *ProviderError for HTTP-shaped failures and ErrNoImage when a successful
// response has no image.
type Provider interface {
	GenerateImage(ctx context.Context, model string, parts []Part) (*Image, error)
}

// Request is one generation call. When Base is set the request is an edit
// of that image.
type Request struct {
	Prompt     string
	References []refassets.Asset
	Base       *refassets.Asset
}

// Edit reports whether the request edits an existing image.
func (r Request) Edit() bool {
	return r.Base != nil
}

// Result is a successful generation.
type Result struct {
	Image    *Image
	Model    string
	Attempts []Attempt
}

// Invoker sends requests to a Provider under a retry Policy.
type Invoker struct {
	provider Provider
	model    string
	policy   Policy
}

// NewInvoker creates an Invoker for the given model.
func NewInvoker(provider Provider, model string, policy Policy) *Invoker {
	return &Invoker{provider: provider, model: model, policy: policy}
}

// Policy returns the retry policy, so other model calls in the same request
// path can share it.
func (inv *Invoker) Policy() Policy {
	return inv.policy
}

// BuildParts orders the message: in edit mode the base image comes first,
// then references (already brand-first), and the prompt text is always last.
func BuildParts(req Request) []Part {
	parts := make([]Part, 0, len(req.References)+2)
	if req.Base != nil {
		parts = append(parts, Part{MIMEType: req.Base.MIMEType, Data: req.Base.Data})
	}
	for _, ref := range req.References {
		parts = append(parts, Part{MIMEType: ref.MIMEType, Data: ref.Data})
	}
	return append(parts, Part{Text: req.Prompt})
}

// Invoke generates an image. On failure the error is a *Error whose Kind
// tells the caller whether the upstream rate-limited, ran out of quota,
// rejected an asset, or simply kept failing.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()
	parts := BuildParts(req)

	log.Info().
		Str("model", inv.model).
		Bool("edit", req.Edit()).
		Int("references", len(req.References)).
		Int("prompt_length", len(req.Prompt)).
		Msg("Invoking image generation")

	var img *Image
	attempts, err := inv.policy.Run(ctx, func(ctx context.Context, attempt int) error {
		out, err := inv.provider.GenerateImage(ctx, inv.model, parts)
		if err != nil {
			return err
		}
		if out == nil || len(out.Data) == 0 {
			return ErrNoImage
		}
		img = out
		return nil
	})
	if err != nil {
		log.Error().
			Err(err).
			Int("attempts", len(attempts)).
			Dur("duration", time.Since(startTime)).
			Msg("Image generation failed")
		return nil, err
	}

	log.Info().
		Int("attempts", len(attempts)).
		Int("output_bytes", len(img.Data)).
		Str("output_mime", img.MIMEType).
		Dur("duration", time.Since(startTime)).
		Msg("Image generation complete")

	return &Result{Image: img, Model: inv.model, Attempts: attempts}, nil
}
