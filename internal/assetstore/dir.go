package assetstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// DirStore keeps assets on the local filesystem. It backs the CLI's local
// server; URLs are file:// links.
type DirStore struct {
	root string
}

var _ Store = (*DirStore)(nil)

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &DirStore{root: abs}, nil
}

func (d *DirStore) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *DirStore) Put(ctx context.Context, teamID, mimeType string, data []byte) (*Stored, error) {
	key := NewKey(teamID, mimeType)
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return nil, fmt.Errorf("write asset: %w", err)
	}
	log.Debug().Str("path", p).Int("bytes", len(data)).Msg("Generated asset written")
	return &Stored{Key: key, URL: (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()}, nil
}

func (d *DirStore) Get(ctx context.Context, teamID, key string) (*Object, error) {
	if err := checkOwner(teamID, key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	return &Object{MIMEType: mimeFromKey(key), Data: data}, nil
}
