package media

import "testing"

func TestWithin(t *testing.T) {
	html := Type{Type: "text", Subtype: "html"}
	png := Type{Type: "image", Subtype: "png"}

	tests := []struct {
		name string
		t    Type
		r    Range
		want bool
	}{
		{"anything within */*", png, Any, true},
		{"html within */*", html, Any, true},
		{"html within text/*", html, Range{"text", "*"}, true},
		{"png not within text/*", png, Range{"text", "*"}, false},
		{"exact match", html, Range{"text", "html"}, true},
		{"subtype mismatch", html, Range{"text", "plain"}, false},
		{"type mismatch with exact subtype", png, Range{"text", "png"}, false},
	}
	for _, tt := range tests {
		if got := tt.t.Within(tt.r); got != tt.want {
			t.Errorf("%s: %s within %s = %v, want %v", tt.name, tt.t, tt.r, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	got, err := ParseType("Text/HTML")
	if err != nil {
		t.Fatalf("ParseType: %v", err)
	}
	if got != (Type{Type: "text", Subtype: "html"}) {
		t.Fatalf("ParseType = %v", got)
	}

	for _, bad := range []string{"", "text", "text/", "/html", "text/html/x", "*/*", "text/*"} {
		if _, err := ParseType(bad); err == nil {
			t.Errorf("ParseType(%q) should fail", bad)
		}
	}
}

func TestParseRange(t *testing.T) {
	got, err := ParseRange("*/*")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if got != Any {
		t.Fatalf("ParseRange(*/*) = %v", got)
	}

	if _, err := ParseRange("*/html"); err == nil {
		t.Error("*/html should be rejected")
	}
	if _, err := ParseRange("text"); err == nil {
		t.Error("bare type should be rejected")
	}
}

func TestTypeForExtension(t *testing.T) {
	if got, ok := TypeForExtension("html"); !ok || got.String() != "text/html" {
		t.Errorf("html -> %v %v", got, ok)
	}
	if got, ok := TypeForExtension("TXT"); !ok || got.String() != "text/plain" {
		t.Errorf("TXT -> %v %v", got, ok)
	}
	if _, ok := TypeForExtension("exe"); ok {
		t.Error("exe should not be recognized")
	}
	if _, ok := TypeForExtension(""); ok {
		t.Error("empty extension should not be recognized")
	}
}

func TestExact(t *testing.T) {
	html := Type{Type: "text", Subtype: "html"}
	if !html.Within(html.Exact()) {
		t.Error("type should match its own exact range")
	}
	if (Type{Type: "text", Subtype: "plain"}).Within(html.Exact()) {
		t.Error("exact range should not match other subtypes")
	}
}
