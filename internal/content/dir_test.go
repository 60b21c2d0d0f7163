package content

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTree lays out a content fixture and returns its root.
func writeTree(t *testing.T, files map[string]os.FileMode) string {
	t.Helper()
	root := t.TempDir()
	for rel, mode := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("content of "+rel), mode); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func closeAll(t *testing.T, files []*File) {
	t.Helper()
	t.Cleanup(func() {
		for _, f := range files {
			f.Close()
		}
	})
}

func byRelPath(files []*File) map[string]*File {
	out := make(map[string]*File, len(files))
	for _, f := range files {
		out[f.RelPath] = f
	}
	return out
}

func TestScanDir_MetadataDerivation(t *testing.T) {
	root := writeTree(t, map[string]os.FileMode{
		"index.html":          0o644,
		"about.txt":           0o644,
		"posts/hello.html":    0o644,
		"nav.html.tmpl":       0o644,
		"bin/report.txt":      0o755,
		".hidden.html":        0o644,
		"assets/.secret/x.js": 0o644,
	})

	files, err := ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	closeAll(t, files)

	m := byRelPath(files)
	if len(m) != 5 {
		t.Fatalf("scanned %d files, want 5: %v", len(m), m)
	}
	if _, ok := m[".hidden.html"]; ok {
		t.Fatal("dot-prefixed basename should be skipped")
	}
	if _, ok := m["assets/.secret/x.js"]; ok {
		t.Fatal("files under dot-prefixed directories should be skipped")
	}

	idx := m["index.html"]
	if idx.Route.String() != "/index" {
		t.Fatalf("index.html route = %q", idx.Route)
	}
	if len(idx.Extensions) != 1 || idx.Extensions[0] != "html" {
		t.Fatalf("index.html extensions = %v", idx.Extensions)
	}
	if idx.Executable {
		t.Fatal("index.html should not be executable")
	}
	if idx.Handle == nil {
		t.Fatal("handle should be open")
	}

	nav := m["nav.html.tmpl"]
	if nav.Route.String() != "/nav" {
		t.Fatalf("nav route = %q", nav.Route)
	}
	if len(nav.Extensions) != 2 || nav.Extensions[0] != "html" || nav.Extensions[1] != "tmpl" {
		t.Fatalf("nav extensions = %v", nav.Extensions)
	}

	post := m["posts/hello.html"]
	if post.Route.String() != "/posts/hello" {
		t.Fatalf("post route = %q", post.Route)
	}

	rep := m["bin/report.txt"]
	if !rep.Executable {
		t.Fatal("mode 0755 should set Executable")
	}
	if rep.Size != int64(len("content of bin/report.txt")) {
		t.Fatalf("size = %d", rep.Size)
	}
}

func TestScanDir_RejectsRelativeRoot(t *testing.T) {
	if _, err := ScanDir("relative/path"); err == nil {
		t.Fatal("relative root should fail")
	}
}

func TestScanDir_MissingRoot(t *testing.T) {
	if _, err := ScanDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("missing root should fail")
	}
}

func TestScanDir_FollowsSymlinkedDirectories(t *testing.T) {
	real := writeTree(t, map[string]os.FileMode{"page.html": 0o644})
	root := t.TempDir()
	if err := os.Symlink(real, filepath.Join(root, "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, err := ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}
	closeAll(t, files)

	m := byRelPath(files)
	f, ok := m["linked/page.html"]
	if !ok {
		t.Fatalf("symlinked dir not followed: %v", m)
	}
	if f.Route.String() != "/linked/page" {
		t.Fatalf("route = %q", f.Route)
	}
}

func TestSplitExtensions(t *testing.T) {
	tests := []struct {
		base     string
		wantStem string
		wantExts []string
	}{
		{"page.html", "page", []string{"html"}},
		{"page.html.tmpl", "page", []string{"html", "tmpl"}},
		{"noext", "noext", nil},
		{".bashrc", ".bashrc", nil},
		{".config.json", ".config", []string{"json"}},
		{"a.b.c.d", "a", []string{"b", "c", "d"}},
	}
	for _, tt := range tests {
		stem, exts := splitExtensions(tt.base)
		if stem != tt.wantStem {
			t.Errorf("splitExtensions(%q) stem = %q, want %q", tt.base, stem, tt.wantStem)
		}
		if len(exts) != len(tt.wantExts) {
			t.Errorf("splitExtensions(%q) exts = %v, want %v", tt.base, exts, tt.wantExts)
			continue
		}
		for i := range exts {
			if exts[i] != tt.wantExts[i] {
				t.Errorf("splitExtensions(%q) exts = %v, want %v", tt.base, exts, tt.wantExts)
			}
		}
	}
}
