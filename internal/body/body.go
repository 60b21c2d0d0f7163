// Package body implements the streaming byte producers behind every
// rendered representation: in-memory buffers, file-backed reads, and child
// process stdout.
//
// A Body is a live, single-use producer polled by exactly one consumer.
// Each Next call either yields a chunk and stays live, returns io.EOF for
// clean completion, or returns a terminal error. After io.EOF or an error
// the Body must not be polled again. Blocking work (disk reads, pipe reads,
// exit-status waits) never runs on the caller's goroutine directly; it is
// offloaded to a bounded Pool and the poll waits for the result, so a
// cancelled caller can walk away while the read finishes in the background
// and its result is discarded.
package body

import (
	"context"
	"io"
)

// Body is a single-use chunk producer.
//
// Next returns (chunk, nil) while live — the chunk may be empty for a
// process body whose pipe is drained but whose child is still running —
// (nil, io.EOF) on completion, or (nil, err) on terminal failure. Bodies
// are not safe for concurrent polls.
type Body interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Collect drains b to completion, returning all produced bytes in order.
// The body is closed regardless of outcome.
func Collect(ctx context.Context, b Body) ([]byte, error) {
	defer b.Close()
	var out []byte
	for {
		chunk, err := b.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}
