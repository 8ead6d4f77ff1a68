package assets

import (
	"strings"
	"testing"
)

func TestRenderReferencePreamble(t *testing.T) {
	got := RenderReferencePreamble(PreambleData{Total: 1})
	if !strings.Contains(got, "1 attached reference image as inspiration only") {
		t.Errorf("unexpected single-image preamble: %q", got)
	}
	if strings.Contains(got, "brand") {
		t.Errorf("preamble without brand assets should not mention brand: %q", got)
	}

	got = RenderReferencePreamble(PreambleData{Total: 4, Brand: 2})
	if !strings.Contains(got, "The first 2 images are brand assets") {
		t.Errorf("expected brand sentence, got %q", got)
	}
	if !strings.Contains(got, "materially different composition") {
		t.Errorf("expected composition guidance, got %q", got)
	}
}

func TestRenderClosing(t *testing.T) {
	tests := []struct {
		data ClosingData
		want string
	}{
		{ClosingData{}, "ready to publish"},
		{ClosingData{Brand: "Acme"}, "publish-ready Acme visual"},
		{ClosingData{Theme: "Summer"}, "for the Summer campaign"},
		{ClosingData{Brand: "Acme", Theme: "Summer"}, "Acme visual for the Summer campaign"},
	}
	for _, tt := range tests {
		got := RenderClosing(tt.data)
		if !strings.Contains(got, tt.want) {
			t.Errorf("RenderClosing(%+v) = %q, want substring %q", tt.data, got, tt.want)
		}
		if got != strings.TrimSpace(got) {
			t.Errorf("closing clause should be trimmed: %q", got)
		}
	}
}

func TestRenderDraftPrompts(t *testing.T) {
	p := RenderPersonaDraftPrompt(DraftData{Name: "Busy Parent", Brand: "Acme"})
	if !strings.Contains(p, "Persona name: Busy Parent") || !strings.Contains(p, "Brand: Acme") {
		t.Errorf("unexpected persona prompt: %q", p)
	}
	if strings.Contains(p, "Known details") {
		t.Error("empty description should be omitted")
	}

	th := RenderThemeDraftPrompt(DraftData{Name: "Summer", Description: "beach"})
	if !strings.Contains(th, "Known details: beach") || !strings.Contains(th, `"keywords"`) {
		t.Errorf("unexpected theme prompt: %q", th)
	}
}
