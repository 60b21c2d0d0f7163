package body

import (
	"context"
	"io"
)

// Memory wraps a byte buffer already in hand: the first poll yields the
// whole buffer, the second completes.
type Memory struct {
	data []byte
	done bool
}

func NewMemory(data []byte) *Memory { return &Memory{data: data} }

func (m *Memory) Next(ctx context.Context) ([]byte, error) {
	if m.done || len(m.data) == 0 {
		m.done = true
		return nil, io.EOF
	}
	m.done = true
	out := m.data
	m.data = nil
	return out, nil
}

func (m *Memory) Close() error { return nil }
