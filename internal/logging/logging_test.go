package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStartupLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	NewStartupLogger("studio-lambda").
		CommitHash("abc123").
		DynamoTable("store", "brand-studio").
		S3Bucket("assets", "brand-studio-assets").
		EventBus("reconcile", "default").
		Feature("originVerify", true).
		Config("imageModel", "gemini-3-pro-image-preview").
		InitDuration(150 * time.Millisecond).
		Log()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("startup log is not JSON: %v\n%s", err, buf.String())
	}
	if doc["message"] != "Startup complete" {
		t.Errorf("unexpected message %v", doc["message"])
	}
	identity := doc["lambda"].(map[string]interface{})
	if identity["name"] != "studio-lambda" || identity["commitHash"] != "abc123" {
		t.Errorf("unexpected identity %v", identity)
	}
	resources := doc["resources"].(map[string]interface{})
	if _, ok := resources["eventBuses"]; !ok {
		t.Error("expected eventBuses in resources")
	}
	if _, ok := resources["databases"]; ok {
		t.Error("empty resource groups must be omitted")
	}
	features := doc["features"].(map[string]interface{})
	if features["originVerify"] != true {
		t.Errorf("unexpected features %v", features)
	}
}
