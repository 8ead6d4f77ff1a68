// Package assetstore keeps generated images so they can be returned as URLs
// and later used as the base of an edit.
package assetstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/fpang/brand-studio/internal/refassets"
)

// ErrNotFound is returned by Get when the key does not exist or is not
// owned by the requesting team.
var ErrNotFound = errors.New("asset not found")

// keyPrefix is the root of every generated asset key.
const keyPrefix = "generated"

// Stored is the location of a saved asset.
type Stored struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Object is a loaded asset.
type Object struct {
	MIMEType string
	Data     []byte
}

// Store saves and loads generated images.
type Store interface {
	Put(ctx context.Context, teamID, mimeType string, data []byte) (*Stored, error)
	Get(ctx context.Context, teamID, key string) (*Object, error)
}

// NewKey returns generated/<team>/<ulid><ext>.
func NewKey(teamID, mimeType string) string {
	return path.Join(keyPrefix, teamID, ulid.Make().String()+refassets.Extension(mimeType))
}

// OwnedBy reports whether key lives under the team's prefix. Keys with
// path traversal are never owned.
func OwnedBy(teamID, key string) bool {
	if teamID == "" || strings.Contains(key, "..") || path.Clean(key) != key {
		return false
	}
	return strings.HasPrefix(key, keyPrefix+"/"+teamID+"/")
}

func checkOwner(teamID, key string) error {
	if !OwnedBy(teamID, key) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// mimeFromKey maps an asset key's extension back to its MIME type.
func mimeFromKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return refassets.MIMEJPEG
	case ".webp":
		return refassets.MIMEWEBP
	case ".gif":
		return refassets.MIMEGIF
	default:
		return refassets.MIMEPNG
	}
}
