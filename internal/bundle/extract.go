package bundle

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/keithlinneman/contentd/internal/xerrors"
)

const (
	// maxBundleSize is the maximum size of a compressed content bundle
	maxBundleSize int64 = 50 * 1024 * 1024 // 50MB

	// maxSingleFile is the maximum size of a single file in the bundle
	maxSingleFile int64 = 10 * 1024 * 1024 // 10MB

	// maxTotalExtract is the maximum total size of extracted content
	maxTotalExtract int64 = 100 * 1024 * 1024 // 100MB
)

// copyWithHash copies from src to dst while computing SHA256
func copyWithHash(dst io.Writer, src io.Reader) (written int64, hash string, err error) {
	h := sha256.New()
	w := io.MultiWriter(dst, h)

	written, err = io.Copy(w, src)
	if err != nil {
		return written, "", err
	}

	return written, hex.EncodeToString(h.Sum(nil)), nil
}

// extractTarGz unpacks a downloaded bundle into dst. Only regular files
// and directories are accepted; entry paths must stay inside dst and the
// per-file and total size limits cap decompression bombs.
func extractTarGz(bundlePath, dst string) error {
	f, err := os.Open(bundlePath)
	if err != nil {
		return xerrors.Wrapf(err, "open bundle %s", bundlePath)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	tr := tar.NewReader(gr)

	var totalBytes int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Wrap(err, "read tar header")
		}

		target, err := sanitizeTarPath(dst, hdr.Name)
		if err != nil {
			return err
		}
		if target == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Wrapf(err, "create dir %s", target)
			}

		case tar.TypeReg:
			if hdr.Size > maxSingleFile {
				return xerrors.Newf("file %s exceeds max size (%d > %d)", hdr.Name, hdr.Size, maxSingleFile)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return xerrors.Wrapf(err, "create parent of %s", target)
			}
			n, err := writeFile(target, tr, hdr.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			totalBytes += n
			if totalBytes > maxTotalExtract {
				return xerrors.Newf("total extracted size exceeds limit (%d bytes, max %d)", totalBytes, maxTotalExtract)
			}

		default:
			return xerrors.Newf("unsupported file type in archive: %s (type=%d)", hdr.Name, hdr.Typeflag)
		}
	}

	return nil
}

// sanitizeTarPath prevents directory traversal attacks. The empty string
// return marks an entry to skip (".").
func sanitizeTarPath(dst, name string) (string, error) {
	name = filepath.Clean(name)
	if name == "." || name == "" {
		return "", nil
	}

	if filepath.IsAbs(name) {
		return "", xerrors.Newf("absolute path in tar: %s", name)
	}
	if strings.Contains(name, "..") {
		return "", xerrors.Newf("path traversal in tar: %s", name)
	}

	target := filepath.Join(dst, name)
	if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), filepath.Clean(dst)+string(os.PathSeparator)) {
		if filepath.Clean(target) != filepath.Clean(dst) {
			return "", xerrors.Newf("path escapes destination: %s", name)
		}
	}

	return target, nil
}

// writeFile writes one archive entry with a size limit. Content files keep
// their archived permission bits so the executable bit survives extraction.
func writeFile(path string, r io.Reader, mode os.FileMode) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, xerrors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	lr := io.LimitReader(r, maxSingleFile+1)
	n, err := io.Copy(f, lr)
	if err != nil {
		return n, xerrors.Wrapf(err, "write %s", path)
	}
	if n > maxSingleFile {
		return n, xerrors.Newf("file too large: %s (%d bytes)", path, n)
	}

	return n, nil
}
