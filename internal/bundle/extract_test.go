package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type entry struct {
	name string
	data string
	mode int64
	dir  bool
}

func writeBundle(t *testing.T, entries []entry) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.data))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.name, err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.data)); err != nil {
				t.Fatalf("write %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	path := filepath.Join(t.TempDir(), "bundle.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestExtractTarGz_RoundTrip(t *testing.T) {
	bundle := writeBundle(t, []entry{
		{name: "docs", dir: true, mode: 0o755},
		{name: "docs/guide.html", data: "<p>guide</p>", mode: 0o644},
		{name: "index.html", data: "<p>home</p>", mode: 0o644},
	})

	dst := t.TempDir()
	if err := extractTarGz(bundle, dst); err != nil {
		t.Fatalf("extract: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "docs", "guide.html"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "<p>guide</p>" {
		t.Fatalf("extracted content = %q", got)
	}
}

func TestExtractTarGz_PreservesExecutableBit(t *testing.T) {
	bundle := writeBundle(t, []entry{
		{name: "gen.txt", data: "#!/bin/sh\necho hi\n", mode: 0o755},
	})

	dst := t.TempDir()
	if err := extractTarGz(bundle, dst); err != nil {
		t.Fatalf("extract: %v", err)
	}

	info, err := os.Stat(filepath.Join(dst, "gen.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Fatalf("executable bit lost: mode %v", info.Mode())
	}
}

func TestExtractTarGz_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"../escape.txt", "a/../../escape.txt", "/abs.txt"} {
		bundle := writeBundle(t, []entry{
			{name: name, data: "x", mode: 0o644},
		})
		dst := t.TempDir()
		if err := extractTarGz(bundle, dst); err == nil {
			t.Fatalf("entry %q should be rejected", name)
		}
	}
}

func TestExtractTarGz_RejectsSymlinkEntries(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "link",
		Typeflag: tar.TypeSymlink,
		Linkname: "/etc/passwd",
	}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	tw.Close()
	gw.Close()

	path := filepath.Join(t.TempDir(), "bundle.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	err := extractTarGz(path, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "unsupported file type") {
		t.Fatalf("err = %v, want unsupported file type", err)
	}
}

func TestSanitizeTarPath(t *testing.T) {
	dst := "/srv/content"
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{".", "", true},
		{"index.html", "/srv/content/index.html", true},
		{"docs/guide.html", "/srv/content/docs/guide.html", true},
		{"../evil", "", false},
		{"/etc/passwd", "", false},
		{"docs/../../evil", "", false},
	}
	for _, tc := range tests {
		got, err := sanitizeTarPath(dst, tc.name)
		if tc.wantOK && err != nil {
			t.Errorf("sanitizeTarPath(%q) unexpected error: %v", tc.name, err)
			continue
		}
		if !tc.wantOK && err == nil {
			t.Errorf("sanitizeTarPath(%q) should fail", tc.name)
			continue
		}
		if got != tc.want {
			t.Errorf("sanitizeTarPath(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCopyWithHash(t *testing.T) {
	var out bytes.Buffer
	n, hash, err := copyWithHash(&out, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("copyWithHash: %v", err)
	}
	if n != 5 || out.String() != "hello" {
		t.Fatalf("copied %d bytes, %q", n, out.String())
	}
	// echo -n hello | sha256sum
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if hash != want {
		t.Fatalf("hash = %s, want %s", hash, want)
	}
}

func TestS3Key(t *testing.T) {
	l := &Loader{opts: Options{S3Prefix: "site/bundles"}}
	if got := l.s3Key("abc"); got != "site/bundles/abc.tar.gz" {
		t.Fatalf("s3Key = %q", got)
	}
	l = &Loader{}
	if got := l.s3Key("abc"); got != "abc.tar.gz" {
		t.Fatalf("s3Key without prefix = %q", got)
	}
}
