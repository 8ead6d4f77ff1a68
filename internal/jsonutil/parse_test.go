package jsonutil

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", `Sure! Here it is: {"a":{"b":2}} Hope that helps.`, `{"a":{"b":2}}`},
		{"array first", `[{"a":1}]`, `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Extract(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := Extract("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
	if _, err := Extract("{ unterminated"); err == nil {
		t.Error("expected error for unterminated object")
	}
}

func TestParseJSON(t *testing.T) {
	type draft struct {
		Description string   `json:"description"`
		Keywords    []string `json:"keywords"`
	}
	got, err := ParseJSON[draft]("```json\n{\"description\":\"sunny\",\"keywords\":[\"beach\"]}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "sunny" || len(got.Keywords) != 1 {
		t.Errorf("unexpected result: %+v", got)
	}

	if _, err := ParseJSON[draft](`{"description": 5}`); err == nil {
		t.Error("expected type error")
	}
}
