package assetstore

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOwnedBy(t *testing.T) {
	tests := []struct {
		team, key string
		want      bool
	}{
		{"t1", "generated/t1/01ABC.png", true},
		{"t1", "generated/t2/01ABC.png", false},
		{"t1", "generated/t1/../t2/01ABC.png", false},
		{"t1", "generated/t10/01ABC.png", false},
		{"", "generated//x.png", false},
		{"t1", "other/t1/x.png", false},
	}
	for _, tt := range tests {
		if got := OwnedBy(tt.team, tt.key); got != tt.want {
			t.Errorf("OwnedBy(%q, %q) = %v, want %v", tt.team, tt.key, got, tt.want)
		}
	}
}

func TestDirStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	d, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	stored, err := d.Put(ctx, "t1", "image/jpeg", []byte("jpegbytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(stored.Key, "generated/t1/") || !strings.HasSuffix(stored.Key, ".jpg") {
		t.Errorf("unexpected key %q", stored.Key)
	}
	if !strings.HasPrefix(stored.URL, "file://") {
		t.Errorf("unexpected URL %q", stored.URL)
	}

	obj, err := d.Get(ctx, "t1", stored.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(obj.Data) != "jpegbytes" || obj.MIMEType != "image/jpeg" {
		t.Errorf("unexpected object %+v", obj)
	}

	if _, err := d.Get(ctx, "t2", stored.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("other team must not read the asset, got %v", err)
	}
	if _, err := d.Get(ctx, "t1", "generated/t1/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
