// Package refassets admits user- and brand-supplied reference images into a
// generation request. Assets are ordered brand-first, checked individually
// and truncated to a fixed cap; a bad asset is dropped without failing the
// request.
package refassets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for image.DecodeConfig
	_ "image/jpeg" // register JPEG decoder for image.DecodeConfig
	_ "image/png"  // register PNG decoder for image.DecodeConfig

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // register WEBP decoder for image.DecodeConfig

	"github.com/fpang/brand-studio/internal/brief"
	"github.com/fpang/brand-studio/internal/prompt"
)

const (
	// DefaultCap is the number of reference assets forwarded to the model.
	DefaultCap = 5

	// MaxAssetBytes bounds a single decoded asset.
	MaxAssetBytes = 10 * 1024 * 1024

	// maxDimension bounds either side of a reference image.
	maxDimension = 8192
)

// Supported MIME types.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
)

// Asset is a verified reference image ready to be sent to the model.
type Asset struct {
	MIMEType string
	Data     []byte
	Source   brief.AssetSource
	Width    int
	Height   int
}

// Admitted is the result of admission.
type Admitted struct {
	Assets  []Asset
	Brand   int
	User    int
	Dropped int
}

// Counts returns the admitted counts in the form the prompt compiler expects.
func (a *Admitted) Counts() prompt.AssetCounts {
	return prompt.AssetCounts{Brand: a.Brand, User: a.User}
}

// Admit orders assets brand-first (stable within each source), verifies
// each one and keeps at most limit valid assets. Invalid assets are logged
// and dropped.
func Admit(assets []brief.ReferenceAsset, limit int) *Admitted {
	if limit <= 0 {
		limit = DefaultCap
	}

	ordered := make([]brief.ReferenceAsset, 0, len(assets))
	for _, a := range assets {
		if a.Source == brief.SourceBrand {
			ordered = append(ordered, a)
		}
	}
	for _, a := range assets {
		if a.Source != brief.SourceBrand {
			ordered = append(ordered, a)
		}
	}

	result := &Admitted{}
	for i, ref := range ordered {
		if len(result.Assets) == limit {
			log.Debug().
				Int("cap", limit).
				Int("skipped", len(ordered)-i).
				Msg("Reference asset cap reached")
			break
		}
		asset, err := Decode(ref.Data)
		if err != nil {
			result.Dropped++
			log.Warn().
				Err(err).
				Int("index", i).
				Str("source", string(ref.Source)).
				Msg("Dropping invalid reference asset")
			continue
		}
		asset.Source = ref.Source
		result.Assets = append(result.Assets, *asset)
		if ref.Source == brief.SourceBrand {
			result.Brand++
		} else {
			result.User++
		}
	}

	log.Debug().
		Int("received", len(assets)).
		Int("brand", result.Brand).
		Int("user", result.User).
		Int("dropped", result.Dropped).
		Msg("Reference assets admitted")
	return result
}

// Decode parses a data URL and verifies that the payload really is an image
// of the declared type.
func Decode(dataURL string) (*Asset, error) {
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return Verify(mimeType, data)
}

// Verify checks that data is an image of the declared MIME type by
// comparing its signature and decoding its header.
func Verify(mimeType string, data []byte) (*Asset, error) {
	if len(data) > MaxAssetBytes {
		return nil, fmt.Errorf("asset is %d bytes, limit is %d", len(data), MaxAssetBytes)
	}
	sniffed := SniffMIME(data)
	if sniffed == "" {
		return nil, fmt.Errorf("unrecognized image signature")
	}
	if mimeType == "image/jpg" {
		mimeType = MIMEJPEG
	}
	if mimeType != sniffed {
		return nil, fmt.Errorf("declared type %s does not match content type %s", mimeType, sniffed)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s header: %w", sniffed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxDimension || cfg.Height > maxDimension {
		return nil, fmt.Errorf("unsupported dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return &Asset{MIMEType: sniffed, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// SniffMIME returns the image MIME type implied by the leading bytes of
// data, or "" when the signature is not a supported image format.
func SniffMIME(data []byte) string {
	switch {
	case isJPEG(data):
		return MIMEJPEG
	case isPNG(data):
		return MIMEPNG
	case isGIF(data):
		return MIMEGIF
	case isWEBP(data):
		return MIMEWEBP
	default:
		return ""
	}
}

func isJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

func isPNG(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	return bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
}

func isGIF(data []byte) bool {
	if len(data) < 6 {
		return false
	}
	return string(data[:6]) == "GIF87a" || string(data[:6]) == "GIF89a"
}

func isWEBP(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	return string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// Extension returns a file extension for a supported MIME type.
func Extension(mimeType string) string {
	switch mimeType {
	case MIMEJPEG:
		return ".jpg"
	case MIMEPNG:
		return ".png"
	case MIMEGIF:
		return ".gif"
	case MIMEWEBP:
		return ".webp"
	default:
		return ".bin"
	}
}
