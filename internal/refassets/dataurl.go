package refassets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ParseDataURL splits a base64 data URL into its declared MIME type and
// decoded bytes.
func ParseDataURL(dataURL string) (string, []byte, error) {
	const marker = ";base64,"
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, errors.New("invalid data URL prefix")
	}
	idx := strings.Index(dataURL, marker)
	if idx < 0 {
		return "", nil, errors.New("data URL missing base64 marker")
	}

	mimeType := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(dataURL[:idx], "data:")))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	payload := strings.TrimSpace(dataURL[idx+len(marker):])
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("decode image base64: %w", err)
		}
	}
	if len(raw) == 0 {
		return "", nil, errors.New("data URL has empty payload")
	}
	return mimeType, raw, nil
}

// EncodeDataURL is the inverse of ParseDataURL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
