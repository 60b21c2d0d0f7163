package pathutil

import "testing"

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/foo/bar", false},
		{"/foo/../bar", true},
		{"/./foo", true},
		{"..", true},
		{"/foo.bar/baz", false},
		{"/..hidden", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasDotSegments(tt.path); got != tt.want {
			t.Errorf("HasDotSegments(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestUnprintable(t *testing.T) {
	if !Unprintable("/foo\x00bar") {
		t.Error("NUL byte should be rejected")
	}
	if !Unprintable(`/foo\bar`) {
		t.Error("backslash should be rejected")
	}
	if Unprintable("/foo/bar") {
		t.Error("plain path should pass")
	}
}
