package content

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/keithlinneman/contentd/internal/route"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

// File is one discovered content file: an open handle plus the metadata
// the registry needs to classify it. The handle stays open for the life of
// the registry.
type File struct {
	// Handle is the eagerly opened descriptor. Never closed per-request;
	// bodies read it via ReadAt.
	Handle *os.File

	// RelPath is the path relative to the scan root, /-separated.
	RelPath string

	// AbsPath is the absolute on-disk path, needed to exec the file.
	AbsPath string

	// Extensions is the dot-separated suffix list of the basename in order,
	// outermost last ("page.html.tmpl" -> ["html", "tmpl"]). A leading-dot
	// basename's first chunk is a name, not an extension — but dot-prefixed
	// entries are skipped during the walk, so that only matters for callers
	// constructing Files by hand.
	Extensions []string

	// Route is the relative path with all extensions stripped, rooted at /.
	Route route.Route

	// Size is the file's length at scan time.
	Size int64

	// Executable is the Unix executable permission bit.
	Executable bool
}

// Close releases the open handle.
func (f *File) Close() error {
	if f.Handle == nil {
		return nil
	}
	return f.Handle.Close()
}

// FileError reports a single entry that could not be turned into a File.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("content file %q: %v", e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// ScanDir recursively enumerates content files under root, following
// symlinks and skipping entries whose basename starts with '.'. root must
// be an absolute, valid-Unicode path. Every returned File carries an open
// handle; on error, handles opened so far are closed before returning.
func ScanDir(root string) ([]*File, error) {
	if !filepath.IsAbs(root) {
		return nil, xerrors.Newf("content root %q is not absolute", root)
	}
	if !utf8.ValidString(root) {
		return nil, xerrors.Newf("content root is not valid unicode")
	}
	if os.PathSeparator != '/' {
		return nil, xerrors.New("content scanning requires a unix path separator")
	}

	var files []*File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	// WalkDir does not follow directory symlinks, so resolve the root and
	// any symlinked entries explicitly.
	err := walkFollowing(root, root, func(path string, info fs.FileInfo) error {
		f, ferr := newFile(root, path, info)
		if ferr != nil {
			return ferr
		}
		files = append(files, f)
		return nil
	}, 0)
	if err != nil {
		closeAll()
		return nil, err
	}
	return files, nil
}

// maxSymlinkDepth bounds symlink-directory recursion during the walk.
const maxSymlinkDepth = 8

func walkFollowing(root, dir string, visit func(string, fs.FileInfo) error, depth int) error {
	if depth > maxSymlinkDepth {
		return xerrors.Newf("walk %q: symlink nesting exceeds %d levels", dir, maxSymlinkDepth)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return xerrors.Wrapf(err, "walk %q", dir)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		// follow symlinks to whatever they resolve to
		info, err := os.Stat(path)
		if err != nil {
			return &FileError{Path: path, Err: err}
		}
		if info.IsDir() {
			if err := walkFollowing(root, path, visit, depth+1); err != nil {
				return err
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := visit(path, info); err != nil {
			return err
		}
	}
	return nil
}

func newFile(root, path string, info fs.FileInfo) (*File, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	for _, comp := range strings.Split(rel, "/") {
		if comp == "" {
			return nil, &FileError{Path: path, Err: fmt.Errorf("empty path component")}
		}
		if !utf8.ValidString(comp) {
			return nil, &FileError{Path: path, Err: fmt.Errorf("path component is not valid unicode")}
		}
	}

	handle, err := os.Open(path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}

	base := filepath.Base(rel)
	stem, exts := splitExtensions(base)

	segs := strings.Split(rel, "/")
	segs[len(segs)-1] = stem
	r := route.FromSegments(segs)

	return &File{
		Handle:     handle,
		RelPath:    rel,
		AbsPath:    path,
		Extensions: exts,
		Route:      r,
		Size:       info.Size(),
		Executable: info.Mode().Perm()&0o111 != 0,
	}, nil
}

// splitExtensions separates a basename into its stem and ordered extension
// suffixes. A leading dot keeps the first chunk as part of the name.
func splitExtensions(base string) (stem string, exts []string) {
	hidden := strings.HasPrefix(base, ".")
	trimmed := strings.TrimPrefix(base, ".")
	parts := strings.Split(trimmed, ".")
	stem = parts[0]
	if hidden {
		stem = "." + stem
	}
	return stem, parts[1:]
}
