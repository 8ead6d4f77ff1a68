package refassets

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/fpang/brand-studio/internal/brief"
)

// pngDataURL returns a data URL for a solid PNG of the given width. Tests use
// the width to identify which input an admitted asset came from.
func pngDataURL(t *testing.T, width int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return EncodeDataURL(MIMEPNG, buf.Bytes())
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestAdmit_BrandFirstAndCapped(t *testing.T) {
	var assets []brief.ReferenceAsset
	// Interleave sources so ordering is actually exercised.
	for i := 0; i < 4; i++ {
		assets = append(assets, brief.ReferenceAsset{Data: pngDataURL(t, 100+i), Source: brief.SourceUser})
		if i < 3 {
			assets = append(assets, brief.ReferenceAsset{Data: pngDataURL(t, 10+i), Source: brief.SourceBrand})
		}
	}

	got := Admit(assets, DefaultCap)

	if len(got.Assets) != 5 {
		t.Fatalf("expected 5 admitted assets, got %d", len(got.Assets))
	}
	if got.Brand != 3 || got.User != 2 {
		t.Errorf("expected 3 brand and 2 user, got %d and %d", got.Brand, got.User)
	}
	wantWidths := []int{10, 11, 12, 100, 101}
	for i, w := range wantWidths {
		if got.Assets[i].Width != w {
			t.Errorf("asset %d: expected width %d, got %d", i, w, got.Assets[i].Width)
		}
	}
	for i := 0; i < 3; i++ {
		if got.Assets[i].Source != brief.SourceBrand {
			t.Errorf("asset %d should be a brand asset", i)
		}
	}
	if c := got.Counts(); c.Total() != 5 || c.Brand != 3 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestAdmit_DropsInvalidIndividually(t *testing.T) {
	assets := []brief.ReferenceAsset{
		{Data: "not a data url", Source: brief.SourceBrand},
		{Data: pngDataURL(t, 20), Source: brief.SourceBrand},
		{Data: EncodeDataURL(MIMEPNG, []byte("plain text pretending to be png")), Source: brief.SourceUser},
		{Data: EncodeDataURL(MIMEPNG, jpegBytes(t)), Source: brief.SourceUser},
		{Data: pngDataURL(t, 30), Source: brief.SourceUser},
	}

	got := Admit(assets, DefaultCap)

	if got.Dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", got.Dropped)
	}
	if len(got.Assets) != 2 || got.Assets[0].Width != 20 || got.Assets[1].Width != 30 {
		t.Fatalf("unexpected admitted assets: %+v", got.Assets)
	}
}

func TestAdmit_CapAppliesToValidAssets(t *testing.T) {
	assets := []brief.ReferenceAsset{
		{Data: "data:image/png;base64,!!!!", Source: brief.SourceBrand},
	}
	for i := 0; i < 6; i++ {
		assets = append(assets, brief.ReferenceAsset{Data: pngDataURL(t, 40+i), Source: brief.SourceUser})
	}

	got := Admit(assets, 5)
	if len(got.Assets) != 5 {
		t.Fatalf("expected 5 valid assets after a drop, got %d", len(got.Assets))
	}
	if got.Assets[4].Width != 44 {
		t.Errorf("expected fifth valid asset to be width 44, got %d", got.Assets[4].Width)
	}
}

func TestAdmit_Empty(t *testing.T) {
	got := Admit(nil, DefaultCap)
	if len(got.Assets) != 0 || got.Counts().Total() != 0 {
		t.Errorf("expected nothing admitted, got %+v", got)
	}
}

func TestVerify_Formats(t *testing.T) {
	if _, err := Verify(MIMEJPEG, jpegBytes(t)); err != nil {
		t.Errorf("jpeg: %v", err)
	}
	if _, err := Verify("image/jpg", jpegBytes(t)); err != nil {
		t.Errorf("image/jpg alias: %v", err)
	}

	var gifBuf bytes.Buffer
	pal := image.NewPaletted(image.Rect(0, 0, 3, 3), color.Palette{color.Black, color.White})
	if err := gif.Encode(&gifBuf, pal, nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}
	a, err := Verify(MIMEGIF, gifBuf.Bytes())
	if err != nil {
		t.Fatalf("gif: %v", err)
	}
	if a.Width != 3 || a.Height != 3 {
		t.Errorf("unexpected gif dimensions %dx%d", a.Width, a.Height)
	}

	fakeWebp := append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 16)...)
	if SniffMIME(fakeWebp) != MIMEWEBP {
		t.Error("expected webp signature to be recognized")
	}
	if _, err := Verify(MIMEWEBP, fakeWebp); err == nil {
		t.Error("expected header decode failure for truncated webp")
	}
}

func TestParseDataURL(t *testing.T) {
	mimeType, data, err := ParseDataURL("data:image/PNG;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mimeType != "image/png" || string(data) != "hello" {
		t.Errorf("got %q %q", mimeType, data)
	}

	if _, data, err = ParseDataURL("data:image/png;base64,aGVsbG8"); err != nil || string(data) != "hello" {
		t.Errorf("unpadded payload: %q %v", data, err)
	}

	for _, bad := range []string{"", "image/png;base64,aGVsbG8=", "data:image/png,hello", "data:image/png;base64,"} {
		if _, _, err := ParseDataURL(bad); err == nil {
			t.Errorf("ParseDataURL(%q): expected error", bad)
		}
	}
}

func TestExtension(t *testing.T) {
	if Extension(MIMEPNG) != ".png" || Extension(MIMEJPEG) != ".jpg" || Extension("application/pdf") != ".bin" {
		t.Error("unexpected extension mapping")
	}
}
