package body

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/keithlinneman/contentd/internal/xerrors"
)

// fileChunk is the largest read issued per poll.
const fileChunk = 64 * 1024

type readResult struct {
	data []byte
	err  error
}

// File streams a file's contents from a borrowed handle via offset reads.
// The handle belongs to the content registry and stays open across
// requests; File never closes it, and ReadAt keeps concurrent bodies over
// the same handle from interfering.
//
// At most one offloaded read is outstanding at a time: a poll that arrives
// while a previous read is in flight waits for that read instead of
// starting another.
type File struct {
	f      *os.File
	size   int64
	offset int64

	pool    *Pool
	pending chan readResult
	done    bool
	failed  error
}

// NewFile builds a body over f reading [0, size). f is borrowed, not owned.
func NewFile(f *os.File, size int64, pool *Pool) *File {
	return &File{f: f, size: size, pool: pool}
}

func (b *File) Next(ctx context.Context) ([]byte, error) {
	if b.failed != nil {
		return nil, b.failed
	}
	if b.done {
		return nil, io.EOF
	}

	if b.pending == nil {
		if b.offset >= b.size {
			b.done = true
			return nil, io.EOF
		}
		n := b.size - b.offset
		if n > fileChunk {
			n = fileChunk
		}
		pend := make(chan readResult, 1)
		f, off := b.f, b.offset
		b.pool.Submit(func() {
			buf := make([]byte, n)
			rn, err := f.ReadAt(buf, off)
			pend <- readResult{data: buf[:rn], err: err}
		})
		b.pending = pend
	}

	select {
	case res := <-b.pending:
		b.pending = nil
		if res.err != nil && !errors.Is(res.err, io.EOF) {
			b.failed = xerrors.Wrapf(res.err, "read %s at offset %d", b.f.Name(), b.offset)
			return nil, b.failed
		}
		if len(res.data) == 0 {
			// EOF short of the recorded size: the file shrank under us
			if b.offset < b.size {
				b.failed = xerrors.Newf("short file %s: expected %d bytes, got %d", b.f.Name(), b.size, b.offset)
				return nil, b.failed
			}
			b.done = true
			return nil, io.EOF
		}
		b.offset += int64(len(res.data))
		if b.offset >= b.size {
			b.done = true
		}
		return res.data, nil
	case <-ctx.Done():
		// terminal for this body; the in-flight read completes in the
		// background and its buffered result is dropped
		b.failed = ctx.Err()
		return nil, b.failed
	}
}

// Close releases the body. The underlying handle is shared and stays open.
func (b *File) Close() error {
	b.done = true
	return nil
}
