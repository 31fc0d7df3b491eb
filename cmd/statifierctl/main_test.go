package main

import "testing"

func TestParseEventSpecBareName(t *testing.T) {
	name, data := parseEventSpec("go")
	if name != "go" || data != nil {
		t.Fatalf("got (%q, %v), want (%q, nil)", name, data, "go")
	}
}

func TestParseEventSpecWithJSONData(t *testing.T) {
	name, data := parseEventSpec(`submit={"amount":5}`)
	if name != "submit" {
		t.Fatalf("got name %q, want %q", name, "submit")
	}
	m, ok := data.(map[string]any)
	if !ok {
		t.Fatalf("got data %T, want map[string]any", data)
	}
	if m["amount"] != float64(5) {
		t.Fatalf("got amount %v, want 5", m["amount"])
	}
}

func TestParseEventSpecWithNonJSONData(t *testing.T) {
	name, data := parseEventSpec("go=not-json")
	if name != "go" {
		t.Fatalf("got name %q, want %q", name, "go")
	}
	if data != "not-json" {
		t.Fatalf("got data %v, want raw string fallback", data)
	}
}
