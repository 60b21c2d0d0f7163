package body

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/keithlinneman/contentd/internal/xerrors"
)

const (
	// processChunk is the per-poll read size from the child's stdout.
	processChunk = 32

	// maxStderr bounds the captured stderr text carried on ExitError.
	maxStderr = 8 * 1024

	// drainBackoff is how long a drained-pipe poll waits for the child to
	// exit before reporting another empty chunk, so a live caller does not
	// spin while the child finishes up.
	drainBackoff = 10 * time.Millisecond
)

// ExitError reports a child process that exited non-zero after its stdout
// was drained.
type ExitError struct {
	PID    int
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("process %d exited with code %d", e.PID, e.Code)
	}
	return fmt.Sprintf("process %d exited with code %d: %s", e.PID, e.Code, e.Stderr)
}

// cappedBuffer is a size-bounded writer for best-effort stderr capture.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room := c.max - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Process streams a child process's stdout. The body owns the child: if
// the body is closed before the child exits, the child is killed and
// reaped, never abandoned.
//
// Stdout goes through an explicit os.Pipe so pipe reads and process
// reaping stay independent; exec.Cmd's StdoutPipe forbids Wait while reads
// are outstanding.
type Process struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *cappedBuffer
	pid    int

	pool    *Pool
	pending chan readResult
	waitCh  chan struct{}
	waitErr error
	done    bool
	failed  error

	closeOnce sync.Once
}

// StartProcess launches path with the given environment and returns a body
// over its stdout. Launch failure is a render error, not a streaming error.
func StartProcess(path string, env []string, pool *Pool) (*Process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, xerrors.Wrap(err, "stdout pipe")
	}

	stderr := &cappedBuffer{max: maxStderr}
	cmd := exec.Command(path)
	cmd.Env = env
	cmd.Stdout = w
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, xerrors.Wrapf(err, "start %s", path)
	}
	// parent's copy of the write end; the child holds its own
	w.Close()

	b := &Process{
		cmd:    cmd,
		stdout: r,
		stderr: stderr,
		pid:    cmd.Process.Pid,
		pool:   pool,
		waitCh: make(chan struct{}),
	}
	go func() {
		b.waitErr = cmd.Wait()
		close(b.waitCh)
	}()
	return b, nil
}

// PID returns the child's process id.
func (b *Process) PID() int { return b.pid }

func (b *Process) Next(ctx context.Context) ([]byte, error) {
	if b.failed != nil {
		return nil, b.failed
	}
	if b.done {
		return nil, io.EOF
	}

	if b.pending == nil {
		pend := make(chan readResult, 1)
		stdout, waitCh := b.stdout, b.waitCh
		b.pool.Submit(func() {
			buf := make([]byte, processChunk)
			n, err := stdout.Read(buf)
			if n == 0 && err == io.EOF {
				// pipe drained; give the child a moment to exit before
				// reporting an empty chunk
				select {
				case <-waitCh:
				case <-time.After(drainBackoff):
				}
			}
			pend <- readResult{data: buf[:n], err: err}
		})
		b.pending = pend
	}

	select {
	case res := <-b.pending:
		b.pending = nil
		return b.consume(res)
	case <-ctx.Done():
		b.failed = ctx.Err()
		return nil, b.failed
	}
}

func (b *Process) consume(res readResult) ([]byte, error) {
	switch {
	case res.err == nil:
		return res.data, nil

	case errors.Is(res.err, syscall.EINTR):
		// interrupted read is transient: stay live, produce nothing
		return []byte{}, nil

	case errors.Is(res.err, io.EOF):
		if len(res.data) > 0 {
			return res.data, nil
		}
		// stdout is fully drained: completion now depends on exit status
		select {
		case <-b.waitCh:
		default:
			// still running with stdout closed; stay live
			return []byte{}, nil
		}
		if b.waitErr == nil {
			b.done = true
			return nil, io.EOF
		}
		var xe *exec.ExitError
		if errors.As(b.waitErr, &xe) {
			b.failed = &ExitError{PID: b.pid, Code: xe.ExitCode(), Stderr: b.stderr.String()}
		} else {
			b.failed = xerrors.Wrapf(b.waitErr, "wait for process %d", b.pid)
		}
		return nil, b.failed

	default:
		b.failed = xerrors.Wrapf(res.err, "read stdout of process %d", b.pid)
		return nil, b.failed
	}
}

// Close kills the child if it is still running, reaps it, and releases the
// pipe. Safe to call more than once.
func (b *Process) Close() error {
	b.closeOnce.Do(func() {
		select {
		case <-b.waitCh:
			// already exited and reaped
		default:
			_ = b.cmd.Process.Kill()
			<-b.waitCh
		}
		b.stdout.Close()
		b.done = true
	})
	return nil
}
