package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/brand-studio/internal/brief"
)

func TestCompileBrief_ThemeFlags(t *testing.T) {
	themeNameFlag, themeDescFlag = "Harvest", "autumn market stalls"
	t.Cleanup(func() { themeNameFlag, themeDescFlag = "", "" })

	out, err := compileBrief(brief.CreativeBrief{Description: "apple cider on a table", BrandName: "Orchard Co"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Harvest") || !strings.Contains(out, "apple cider on a table") {
		t.Errorf("unexpected prompt %q", out)
	}
}

func TestCompileBrief_Invalid(t *testing.T) {
	if _, err := compileBrief(brief.CreativeBrief{Description: "x", Mood: "furious"}); err == nil {
		t.Error("expected unknown mood to be rejected")
	}
}

func TestCompileCommand_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.json")
	if err := os.WriteFile(path, []byte(`{"description": "a lighthouse at dusk"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	compileCmd.SetOut(&buf)
	runCompile(compileCmd, []string{path})

	first := buf.String()
	if !strings.Contains(first, "a lighthouse at dusk") {
		t.Errorf("unexpected output %q", first)
	}
	buf.Reset()
	runCompile(compileCmd, []string{path})
	if buf.String() != first {
		t.Error("compile output must be deterministic")
	}
}
