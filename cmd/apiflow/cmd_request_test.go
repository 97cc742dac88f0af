package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBodyFromData(t *testing.T) {
	if _, ok := bodyFromData(`{"qty":2}`).(json.RawMessage); !ok {
		t.Error("Expected JSON data to be sent as raw JSON")
	}
	if s, ok := bodyFromData("plain note").(string); !ok || s != "plain note" {
		t.Error("Expected non-JSON data to be sent as text")
	}
}

func TestRequestOptionsParsing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}

	flags := &requestFlags{
		forms:   []string{"title=Scan"},
		files:   []string{"file=" + path},
		headers: []string{"X-Branch: 4"},
		queries: []string{"page=1"},
		attempt: 2,
	}
	opts, err := flags.requestOptions()
	if err != nil {
		t.Fatalf("requestOptions: %v", err)
	}
	if len(opts) != 4 {
		t.Errorf("Expected 4 options, got %d", len(opts))
	}
}

func TestRequestOptionsErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags requestFlags
	}{
		{"bad header", requestFlags{headers: []string{"no-colon"}}},
		{"bad query", requestFlags{queries: []string{"novalue"}}},
		{"data with form", requestFlags{data: "x", forms: []string{"a=b"}}},
		{"bad form", requestFlags{forms: []string{"oops"}}},
		{"missing file", requestFlags{files: []string{"file=/does/not/exist"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.flags.requestOptions(); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
