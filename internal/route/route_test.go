package route

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, in string) Route {
	t.Helper()
	r, err := Parse(in)
	if err != nil {
		t.Fatalf("Parse(%q): %v", in, err)
	}
	return r
}

func TestParse_Canonicalization(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"////", "/"},
		{"/foo", "/foo"},
		{"/foo/", "/foo"},
		{"/foo//bar", "/foo/bar"},
		{"////foo/////bar////", "/foo/bar"},
		{"/foo/bar/baz", "/foo/bar/baz"},
		{"/_private/thing", "/_private/thing"},
	}
	for _, tt := range tests {
		got := mustParse(t, tt.in)
		if got.String() != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got.String(), tt.want)
		}
	}
}

func TestParse_EquivalentInputsAreEqual(t *testing.T) {
	if mustParse(t, "////foo/////bar////") != mustParse(t, "/foo/bar") {
		t.Error("collapsed routes should compare equal")
	}
	if mustParse(t, "/") != mustParse(t, "////") {
		t.Error("root spellings should compare equal")
	}
	if mustParse(t, "/foo/bar/") != mustParse(t, "/foo//bar") {
		t.Error("trailing and doubled separators should collapse identically")
	}
}

func TestParse_IsIdempotent(t *testing.T) {
	first := mustParse(t, "/a///b//c/")
	second := mustParse(t, first.String())
	if first != second {
		t.Errorf("re-parsing %q changed the route to %q", first, second)
	}
}

func TestParse_RejectsNonAbsolute(t *testing.T) {
	for _, in := range []string{"", "foo", "foo/bar", "./foo", " /foo"} {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q) should fail", in)
			continue
		}
		var ie *InvalidError
		if !errors.As(err, &ie) {
			t.Errorf("Parse(%q) error type = %T", in, err)
		}
	}
}

func TestSegments(t *testing.T) {
	if got := mustParse(t, "/").Segments(); got != nil {
		t.Errorf("root Segments() = %v, want nil", got)
	}
	got := mustParse(t, "/foo//bar/").Segments()
	want := []string{"foo", "bar"}
	if len(got) != len(want) {
		t.Fatalf("Segments() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Segments() = %v, want %v", got, want)
		}
	}
}

func TestHidden(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/", false},
		{"/foo/bar", false},
		{"/_partials/header", true},
		{"/foo/_x", true},
		{"/foo_bar", false},
	}
	for _, tt := range tests {
		if got := mustParse(t, tt.in).Hidden(); got != tt.want {
			t.Errorf("Hidden(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromSegments(t *testing.T) {
	if FromSegments(nil) != Root() {
		t.Error("FromSegments(nil) should be root")
	}
	if FromSegments([]string{"a", "b"}).String() != "/a/b" {
		t.Error("FromSegments join mismatch")
	}
}
